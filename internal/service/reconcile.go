package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
)

// ReconcileInput is one statement to reconcile an account against.
type ReconcileInput struct {
	AccountID          string
	ReconciliationDate time.Time
	StatementBalance   float64
	Actor              string
	Notes              *string
}

// ReconciliationService compares ledger balances with bank statements.
type ReconciliationService struct {
	DB      *sql.DB
	Store   *TransactionStore
	Options Options
}

// Reconcile sums the account's ledger through the reconciliation date,
// compares it with the statement balance, marks every not-yet-reconciled
// transaction in the set as reconciled and stores the run. Everything happens
// in one database transaction.
func (s *ReconciliationService) Reconcile(ctx context.Context, in ReconcileInput) (repository.Reconciliation, error) {
	if strings.TrimSpace(in.AccountID) == "" {
		return repository.Reconciliation{}, invalid("account_id", "required")
	}
	if in.ReconciliationDate.IsZero() {
		return repository.Reconciliation{}, invalid("reconciliation_date", "required")
	}
	actor := actorOrSystem(in.Actor)
	through := database.Day(in.ReconciliationDate)
	tolerance := decimal.NewFromFloat(s.opts().Tolerance)

	var rec repository.Reconciliation
	err := inTx(ctx, s.DB, func(q queries) error {
		txs, err := q.txs.ForReconciliation(ctx, in.AccountID, through)
		if err != nil {
			return fmt.Errorf("reconcile: load: %w", err)
		}

		calculated := decimal.Zero
		for _, t := range txs {
			calculated = calculated.Add(decimal.NewFromFloat(t.Amount))
		}
		statement := decimal.NewFromFloat(in.StatementBalance)
		difference := statement.Sub(calculated)

		now := database.Now()
		marked := 0
		for _, t := range txs {
			if t.IsReconciled {
				continue
			}
			if err := s.markReconciled(ctx, q, t, actor, now); err != nil {
				return err
			}
			marked++
		}

		rec = repository.Reconciliation{
			ID:                 uuid.NewString(),
			AccountID:          in.AccountID,
			ReconciliationDate: through,
			StatementBalance:   in.StatementBalance,
			CalculatedBalance:  calculated.InexactFloat64(),
			Difference:         difference.InexactFloat64(),
			IsBalanced:         difference.Abs().LessThan(tolerance),
			ReconciledCount:    marked,
			PerformedBy:        actor,
			Notes:              optionalPtr(in.Notes),
			CreatedAt:          now,
		}
		if err := q.recon.Add(ctx, rec); err != nil {
			return fmt.Errorf("reconcile: record: %w", err)
		}
		return nil
	})
	if err != nil {
		return repository.Reconciliation{}, err
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("account_id", rec.AccountID).
		Float64("difference", rec.Difference).
		Bool("balanced", rec.IsBalanced).
		Int("reconciled", rec.ReconciledCount).
		Msg("reconciliation complete")
	return rec, nil
}

// markReconciled walks t forward to reconciled. Pending entries clear first;
// entries that already cleared move straight to reconciled.
func (s *ReconciliationService) markReconciled(ctx context.Context, q queries, t repository.Transaction, actor string, at time.Time) error {
	next := t
	if next.Status == repository.StatusPending {
		if err := setStatus(&next, repository.StatusCleared, actor, at); err != nil {
			return err
		}
	}
	if next.Status == repository.StatusCleared {
		if err := setStatus(&next, repository.StatusReconciled, actor, at); err != nil {
			return err
		}
	}
	return s.store().commit(ctx, q, t, next, diffTransaction(t, next), repository.ActionReconcile, actor, "statement reconciliation", at)
}

// List returns the account's reconciliation records, newest first.
func (s *ReconciliationService) List(ctx context.Context, accountID string) ([]repository.Reconciliation, error) {
	return repository.NewReconciliationRepo(s.DB).ListForAccount(ctx, accountID)
}

func (s *ReconciliationService) store() *TransactionStore {
	if s.Store != nil {
		return s.Store
	}
	return &TransactionStore{DB: s.DB}
}

func (s *ReconciliationService) opts() Options {
	if s.Options == (Options{}) {
		return DefaultOptions()
	}
	return s.Options
}
