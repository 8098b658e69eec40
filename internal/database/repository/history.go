package repository

import (
	"context"
	"database/sql"
)

// HistoryRepo appends transaction modification history. There is no update
// or delete path.
type HistoryRepo struct{ db DBTX }

func NewHistoryRepo(db DBTX) *HistoryRepo { return &HistoryRepo{db: db} }

func (r *HistoryRepo) Append(ctx context.Context, e HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transaction_modification_history(
	 transaction_id, action, field_name, old_value, new_value, modified_by, reason, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TransactionID, string(e.Action), nullString(e.FieldName), nullString(e.OldValue), nullString(e.NewValue),
		e.ModifiedBy, nullString(e.Reason), e.CreatedAt)
	return err
}

// ForTransaction returns entries in the order they were written.
func (r *HistoryRepo) ForTransaction(ctx context.Context, transactionID string) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, transaction_id, action, field_name, old_value, new_value, modified_by, reason, created_at
	FROM transaction_modification_history WHERE transaction_id = ? ORDER BY id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var field, oldValue, newValue, reason sql.NullString
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Action, &field, &oldValue, &newValue, &e.ModifiedBy, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FieldName = strPtr(field)
		e.OldValue = strPtr(oldValue)
		e.NewValue = strPtr(newValue)
		e.Reason = strPtr(reason)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
