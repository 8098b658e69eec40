package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/service"
)

type importCmd struct {
	cfg         config.Config
	owner       ownerFlags
	account     string
	institution string
	userID      string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import transactions from a CSV statement export" }
func (*importCmd) Usage() string {
	return `ledger import -account <id> -institution <id> -as <user> [-user <id> | -group <id>] <file.csv>

  Reads rows of date,name,amount[,merchant,description,external_id]. Every
  row runs through duplicate detection; likely duplicates are imported and
  flagged. When an owner is given, that owner's rules categorize each row.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	c.owner.register(f)
	f.StringVar(&c.account, "account", "", "Account the statement belongs to.")
	f.StringVar(&c.institution, "institution", "", "Institution that issued the statement.")
	f.StringVar(&c.userID, "as", "", "User the transactions belong to.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one CSV file")
		return subcommands.ExitUsageError
	}
	opts := service.ImportOptions{
		AccountID:     c.account,
		InstitutionID: c.institution,
		UserID:        c.userID,
		Actor:         c.userID,
	}
	if c.owner.user != "" || c.owner.group != "" {
		owner, err := c.owner.owner()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		opts.Owner = owner
	}
	loc, err := time.LoadLocation(c.cfg.Import.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: using UTC, timezone %q: %v\n", c.cfg.Import.Timezone, err)
		loc = time.UTC
	}
	opts.Location = loc

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	e, err := openEngine(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	res, err := e.ingest.ImportCSV(ctx, file, opts)
	if err != nil {
		return fail(err)
	}
	for _, rowErr := range res.Errors {
		fmt.Fprintln(os.Stderr, rowErr)
	}
	fmt.Printf("imported %d (%d flagged as duplicates, %d categorized), %d errors\n",
		res.Imported, res.Duplicates, res.Categorized, len(res.Errors))
	if len(res.Errors) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
