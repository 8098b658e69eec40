package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/jask/ledger/internal/config"
	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
	"github.com/jask/ledger/internal/service"
)

// engine is the set of services every command works through.
type engine struct {
	db         *sql.DB
	store      *service.TransactionStore
	detector   *service.DuplicateDetector
	categories *service.CategoryService
	rules      *service.RuleEngine
	recon      *service.ReconciliationService
	ingest     *service.IngestService
}

// openEngine migrates the configured database and wires the services on it.
func openEngine(ctx context.Context, cfg config.Config) (*engine, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("path", cfg.Database.Path).Msg("database ready")

	opts := service.OptionsFromConfig(cfg)
	detector := &service.DuplicateDetector{DB: db, Options: opts}
	store := &service.TransactionStore{DB: db, Detector: detector, Options: opts}
	rules := &service.RuleEngine{DB: db, Store: store}
	return &engine{
		db:         db,
		store:      store,
		detector:   detector,
		categories: &service.CategoryService{DB: db, Options: opts},
		rules:      rules,
		recon:      &service.ReconciliationService{DB: db, Store: store, Options: opts},
		ingest:     &service.IngestService{Store: store, Rules: rules},
	}, nil
}

func (e *engine) Close() error { return e.db.Close() }

// ownerFlags selects a user or group owner from -user / -group.
type ownerFlags struct {
	user  string
	group string
}

func (o *ownerFlags) register(f *flag.FlagSet) {
	f.StringVar(&o.user, "user", "", "Owning user ID.")
	f.StringVar(&o.group, "group", "", "Owning group ID. Mutually exclusive with -user.")
}

func (o *ownerFlags) owner() (repository.Owner, error) {
	user, group := strings.TrimSpace(o.user), strings.TrimSpace(o.group)
	switch {
	case user != "" && group != "":
		return repository.Owner{}, errors.New("-user and -group cannot be used together")
	case user != "":
		return repository.UserOwner(user), nil
	case group != "":
		return repository.GroupOwner(group), nil
	}
	return repository.Owner{}, errors.New("one of -user or -group is required")
}

// fail reports err and maps validation errors to a usage exit status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if service.IsValidation(err) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}
