package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/service"
)

type treeCmd struct {
	cfg   config.Config
	owner ownerFlags
	usage bool
}

func (*treeCmd) Name() string     { return "tree" }
func (*treeCmd) Synopsis() string { return "print an owner's category tree" }
func (*treeCmd) Usage() string {
	return `ledger tree (-user <id> | -group <id>) [-usage]

  Prints the active categories as an indented tree.
`
}

func (c *treeCmd) SetFlags(f *flag.FlagSet) {
	c.owner.register(f)
	f.BoolVar(&c.usage, "usage", false, "Show transaction counts and totals.")
}

func (c *treeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	roots, err := e.categories.Tree(ctx, owner)
	if err != nil {
		return fail(err)
	}
	printTree(os.Stdout, roots, 0, c.usage)
	return subcommands.ExitSuccess
}

func printTree(w io.Writer, nodes []*service.CategoryTreeNode, depth int, usage bool) {
	for _, n := range nodes {
		line := strings.Repeat("  ", depth) + n.Name
		if usage {
			line += fmt.Sprintf("  (%d, %s)", n.TransactionCount, decimal.NewFromFloat(n.TotalAmount).StringFixed(2))
		}
		fmt.Fprintln(w, line)
		printTree(w, n.Children, depth+1, usage)
	}
}
