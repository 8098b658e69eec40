package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/service"
)

type reconcileCmd struct {
	cfg     config.Config
	account string
	date    string
	balance string
	notes   string
	actor   string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "reconcile an account against a statement balance" }
func (*reconcileCmd) Usage() string {
	return `ledger reconcile -account <id> -date <YYYY-MM-DD> -balance <amount> [-notes <text>] [-as <actor>]

  Sums the account's pending, cleared and reconciled transactions through
  the statement date, compares the total with the statement balance and
  marks every transaction in the set as reconciled.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account to reconcile.")
	f.StringVar(&c.date, "date", "", "Statement date (defaults to today).")
	f.StringVar(&c.balance, "balance", "", "Closing balance printed on the statement.")
	f.StringVar(&c.notes, "notes", "", "Free-text note stored with the run.")
	f.StringVar(&c.actor, "as", "", "Who performed the reconciliation.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" || c.balance == "" {
		fmt.Fprintln(os.Stderr, "-account and -balance are required")
		return subcommands.ExitUsageError
	}
	balance, err := decimal.NewFromString(c.balance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid balance %q: %v\n", c.balance, err)
		return subcommands.ExitUsageError
	}
	date := time.Now()
	if c.date != "" {
		date, err = time.Parse(time.DateOnly, c.date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q: %v\n", c.date, err)
			return subcommands.ExitUsageError
		}
	}

	e, err := openEngine(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	in := service.ReconcileInput{
		AccountID:          c.account,
		ReconciliationDate: date,
		StatementBalance:   balance.InexactFloat64(),
		Actor:              c.actor,
	}
	if c.notes != "" {
		in.Notes = &c.notes
	}
	rec, err := e.recon.Reconcile(ctx, in)
	if err != nil {
		return fail(err)
	}

	status := "balanced"
	if !rec.IsBalanced {
		status = "NOT balanced"
	}
	fmt.Printf("%s through %s: statement %s, ledger %s, difference %s (%s), %d newly reconciled\n",
		rec.AccountID,
		rec.ReconciliationDate.Format(time.DateOnly),
		decimal.NewFromFloat(rec.StatementBalance).StringFixed(2),
		decimal.NewFromFloat(rec.CalculatedBalance).StringFixed(2),
		decimal.NewFromFloat(rec.Difference).StringFixed(2),
		status,
		rec.ReconciledCount,
	)
	if !rec.IsBalanced {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
