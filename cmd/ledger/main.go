package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	ctx := logger.WithContext(context.Background(), log)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commander.Register(&migrateCmd{cfg: cfg}, "setup")
	commander.Register(&seedCmd{cfg: cfg}, "setup")
	commander.Register(&importCmd{cfg: cfg}, "ledger")
	commander.Register(&categorizeCmd{cfg: cfg}, "ledger")
	commander.Register(&duplicatesCmd{cfg: cfg}, "ledger")
	commander.Register(&reconcileCmd{cfg: cfg}, "ledger")
	commander.Register(&treeCmd{cfg: cfg}, "categories")

	flag.Parse()
	os.Exit(int(commander.Execute(ctx)))
}
