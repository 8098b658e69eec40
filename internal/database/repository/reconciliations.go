package repository

import (
	"context"
	"database/sql"
)

// ReconciliationRepo stores reconciliation records. Records are insert-only.
type ReconciliationRepo struct{ db DBTX }

func NewReconciliationRepo(db DBTX) *ReconciliationRepo { return &ReconciliationRepo{db: db} }

func (r *ReconciliationRepo) Add(ctx context.Context, rec Reconciliation) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transaction_reconciliations(
	 id, account_id, reconciliation_date, statement_balance, calculated_balance, difference,
	 is_balanced, reconciled_count, performed_by, notes, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.AccountID, rec.ReconciliationDate, rec.StatementBalance, rec.CalculatedBalance, rec.Difference,
		rec.IsBalanced, rec.ReconciledCount, rec.PerformedBy, nullString(rec.Notes), rec.CreatedAt)
	return err
}

// ListForAccount returns the account's records, newest first.
func (r *ReconciliationRepo) ListForAccount(ctx context.Context, accountID string) ([]Reconciliation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, account_id, reconciliation_date, statement_balance, calculated_balance,
	 difference, is_balanced, reconciled_count, performed_by, notes, created_at
	FROM transaction_reconciliations WHERE account_id = ? ORDER BY created_at DESC, reconciliation_date DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reconciliation
	for rows.Next() {
		var rec Reconciliation
		var notes sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.ReconciliationDate, &rec.StatementBalance, &rec.CalculatedBalance,
			&rec.Difference, &rec.IsBalanced, &rec.ReconciledCount, &rec.PerformedBy, &notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Notes = strPtr(notes)
		rec.ReconciliationDate = rec.ReconciliationDate.UTC()
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
