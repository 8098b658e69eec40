package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
)

type duplicatesCmd struct {
	cfg     config.Config
	account string
}

func (*duplicatesCmd) Name() string     { return "duplicates" }
func (*duplicatesCmd) Synopsis() string { return "list likely duplicate pairs on an account" }
func (*duplicatesCmd) Usage() string {
	return `ledger duplicates -account <id>

  Scans stored transactions for pairs with equal amounts inside the
  duplicate window and similar names. Nothing is changed.
`
}

func (c *duplicatesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account to scan.")
}

func (c *duplicatesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	pairs, err := e.detector.Sweep(ctx, c.account)
	if err != nil {
		return fail(err)
	}
	for _, p := range pairs {
		fmt.Printf("%s  %s %-30s | %s %-30s  %.2f  score=%.2f edit=%.2f\n",
			p.A.ID[:8], p.A.TransactionDate.Format(time.DateOnly), p.A.Name,
			p.B.TransactionDate.Format(time.DateOnly), p.B.Name,
			p.A.Amount, p.Score, p.EditRatio)
	}
	fmt.Printf("%d possible duplicate pairs\n", len(pairs))
	return subcommands.ExitSuccess
}
