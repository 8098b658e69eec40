package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
)

type seedCmd struct {
	cfg   config.Config
	owner ownerFlags
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "create the starter category tree for an owner" }
func (*seedCmd) Usage() string {
	return `ledger seed (-user <id> | -group <id>)

  Creates the default category tree. Owners that already have categories
  are left alone.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) { c.owner.register(f) }

func (c *seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	owner, err := c.owner.owner()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	e, err := openEngine(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	n, err := e.categories.SeedDefaults(ctx, owner)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("created %d categories for %s\n", n, owner)
	return subcommands.ExitSuccess
}
