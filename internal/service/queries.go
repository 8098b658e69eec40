package service

import (
	"context"
	"database/sql"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
)

// queries binds every repo to one connection or transaction.
type queries struct {
	txs     *repository.TransactionRepo
	cats    *repository.CategoryRepo
	rules   *repository.RuleRepo
	history *repository.HistoryRepo
	recon   *repository.ReconciliationRepo
}

func newQueries(db repository.DBTX) queries {
	return queries{
		txs:     repository.NewTransactionRepo(db),
		cats:    repository.NewCategoryRepo(db),
		rules:   repository.NewRuleRepo(db),
		history: repository.NewHistoryRepo(db),
		recon:   repository.NewReconciliationRepo(db),
	}
}

func inTx(ctx context.Context, db *sql.DB, fn func(q queries) error) error {
	return database.WithTx(ctx, db, func(tx *sql.Tx) error {
		return fn(newQueries(tx))
	})
}
