package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
)

// testEngine wires every service against one migrated sqlite file.
type testEngine struct {
	db         *sql.DB
	store      *TransactionStore
	detector   *DuplicateDetector
	categories *CategoryService
	rules      *RuleEngine
	recon      *ReconciliationService
	ingest     *IngestService
}

func setupEngine(t *testing.T) (*testEngine, context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	opts := DefaultOptions()
	detector := &DuplicateDetector{DB: db, Options: opts}
	store := &TransactionStore{DB: db, Detector: detector, Options: opts}
	rules := &RuleEngine{DB: db, Store: store}
	return &testEngine{
		db:         db,
		store:      store,
		detector:   detector,
		categories: &CategoryService{DB: db, Options: opts},
		rules:      rules,
		recon:      &ReconciliationService{DB: db, Store: store, Options: opts},
		ingest:     &IngestService{Store: store, Rules: rules},
	}, ctx
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txInput(name string, amount float64, date time.Time) CreateTransactionInput {
	return CreateTransactionInput{
		AccountID:       "acct-1",
		InstitutionID:   "inst-1",
		UserID:          "user-1",
		Amount:          amount,
		TransactionDate: date,
		Name:            name,
		Actor:           "user-1",
	}
}

func mustCreate(t *testing.T, ctx context.Context, e *testEngine, in CreateTransactionInput) repository.Transaction {
	t.Helper()
	tx, err := e.store.Create(ctx, in)
	require.NoError(t, err)
	return tx
}

func mustCategory(t *testing.T, ctx context.Context, e *testEngine, owner repository.Owner, name string, parent *repository.Category) repository.Category {
	t.Helper()
	in := CategoryInput{Owner: owner, Name: name}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	c, err := e.categories.Create(ctx, in)
	require.NoError(t, err)
	return c
}
