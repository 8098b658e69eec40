package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/logger"
)

type migrateCmd struct {
	cfg config.Config
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `ledger migrate

  Creates the database if needed and applies every pending migration.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEngine(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	version, dirty, err := database.MigrationVersion(c.cfg.Database.Path, c.cfg.Database.Migrations)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if dirty {
		fmt.Fprintf(os.Stderr, "schema version %d is dirty\n", version)
		return subcommands.ExitFailure
	}
	log := logger.FromContext(ctx)
	log.Info().Str("path", c.cfg.Database.Path).Uint("version", version).Msg("schema up to date")
	fmt.Printf("%s at schema version %d\n", c.cfg.Database.Path, version)
	return subcommands.ExitSuccess
}
