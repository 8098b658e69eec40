package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
)

type categorizeCmd struct {
	cfg     config.Config
	owner   ownerFlags
	account string
}

func (*categorizeCmd) Name() string     { return "categorize" }
func (*categorizeCmd) Synopsis() string { return "run an owner's rules over uncategorized transactions" }
func (*categorizeCmd) Usage() string {
	return `ledger categorize -account <id> (-user <id> | -group <id>)

  Applies the owner's active rules, highest priority first, to every
  uncategorized transaction on the account.
`
}

func (c *categorizeCmd) SetFlags(f *flag.FlagSet) {
	c.owner.register(f)
	f.StringVar(&c.account, "account", "", "Account to categorize.")
}

func (c *categorizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	owner, err := c.owner.owner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "-account is required")
		return subcommands.ExitUsageError
	}
	e, err := openEngine(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	n, err := e.rules.ApplyToUncategorized(ctx, owner, c.account)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("categorized %d transactions\n", n)
	return subcommands.ExitSuccess
}
