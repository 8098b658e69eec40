package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const transactionColumns = `id, account_id, institution_id, user_id, amount, transaction_type, transaction_date,
 name, description, merchant_name, category, subcategory, custom_category, user_category_id, group_category_id,
 status, is_pending, source, external_id, currency, exchange_rate, is_recurring, recurrence_pattern,
 recurrence_group_id, is_reconciled, reconciled_at, reconciled_by, duplicate_confidence, duplicate_of_id,
 notes, created_at, updated_at`

// TransactionFilters defines list filters.
type TransactionFilters struct {
	AccountID  string
	UserID     string
	Status     Status
	CategoryID string // matches user or group category
	From       time.Time
	To         time.Time // inclusive
	// IncludeCancelled lists soft-deleted rows too.
	IncludeCancelled bool
	Uncategorized    bool
	Limit            int
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.ID, t.AccountID, t.InstitutionID, t.UserID, t.Amount, string(t.TransactionType), t.TransactionDate,
		t.Name, nullString(t.Description), nullString(t.MerchantName), nullSystemCategory(t.Category),
		nullString(t.Subcategory), nullString(t.CustomCategory), nullString(t.UserCategoryID), nullString(t.GroupCategoryID),
		string(t.Status), t.IsPending, string(t.Source), nullString(t.ExternalID), t.Currency, nullFloat(t.ExchangeRate),
		t.IsRecurring, nullRecurrence(t.RecurrencePattern), nullString(t.RecurrenceGroupID),
		t.IsReconciled, nullTime(t.ReconciledAt), nullString(t.ReconciledBy),
		nullFloat(t.DuplicateConfidence), nullString(t.DuplicateOfID), nullString(t.Notes), t.CreatedAt, t.UpdatedAt)
	return err
}

// Update writes every mutable column of t. Identity and provenance columns
// are never rewritten.
func (r *TransactionRepo) Update(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET
	 amount = ?, transaction_type = ?, transaction_date = ?, name = ?, description = ?, merchant_name = ?,
	 category = ?, subcategory = ?, custom_category = ?, user_category_id = ?, group_category_id = ?,
	 status = ?, is_pending = ?, exchange_rate = ?, is_recurring = ?, recurrence_pattern = ?,
	 recurrence_group_id = ?, is_reconciled = ?, reconciled_at = ?, reconciled_by = ?,
	 duplicate_confidence = ?, duplicate_of_id = ?, notes = ?, updated_at = ?
	WHERE id = ?
	`,
		t.Amount, string(t.TransactionType), t.TransactionDate, t.Name, nullString(t.Description), nullString(t.MerchantName),
		nullSystemCategory(t.Category), nullString(t.Subcategory), nullString(t.CustomCategory),
		nullString(t.UserCategoryID), nullString(t.GroupCategoryID),
		string(t.Status), t.IsPending, nullFloat(t.ExchangeRate), t.IsRecurring, nullRecurrence(t.RecurrencePattern),
		nullString(t.RecurrenceGroupID), t.IsReconciled, nullTime(t.ReconciledAt), nullString(t.ReconciledBy),
		nullFloat(t.DuplicateConfidence), nullString(t.DuplicateOfID), nullString(t.Notes), t.UpdatedAt,
		t.ID)
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// DuplicateCandidates returns non-cancelled transactions on the account with
// exactly amount, dated within [from, to].
func (r *TransactionRepo) DuplicateCandidates(ctx context.Context, accountID string, amount float64, from, to time.Time) ([]Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE account_id = ? AND amount = ? AND transaction_date >= ? AND transaction_date <= ? AND status != 'cancelled'
	ORDER BY created_at, id`, accountID, amount, from, to)
}

// ByExternalID finds a non-cancelled transaction by its source-scoped external ID.
func (r *TransactionRepo) ByExternalID(ctx context.Context, source Source, externalID string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE source = ? AND external_id = ? AND status != 'cancelled' ORDER BY created_at LIMIT 1`, string(source), externalID)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ForReconciliation returns the transactions that make up the balance of an
// account through the given day: neither cancelled nor failed.
func (r *TransactionRepo) ForReconciliation(ctx context.Context, accountID string, through time.Time) ([]Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE account_id = ? AND transaction_date <= ? AND status NOT IN ('cancelled', 'failed')
	ORDER BY transaction_date, created_at`, accountID, through)
}

// ReferencingCategory lists transaction IDs whose category is categoryID.
func (r *TransactionRepo) ReferencingCategory(ctx context.Context, categoryID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM transactions WHERE user_category_id = ? OR group_category_id = ? ORDER BY id`, categoryID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}

	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	} else if !f.IncludeCancelled {
		where = append(where, "status != 'cancelled'")
	}
	if f.CategoryID != "" {
		where = append(where, "(user_category_id = ? OR group_category_id = ?)")
		args = append(args, f.CategoryID, f.CategoryID)
	}
	if f.Uncategorized {
		where = append(where, "user_category_id IS NULL AND group_category_id IS NULL")
	}
	if !f.From.IsZero() {
		where = append(where, "transaction_date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "transaction_date <= ?")
		args = append(args, f.To)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transaction_date DESC, created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.query(ctx, query, args...)
}

func (r *TransactionRepo) query(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var description, merchant, category, subcategory, custom, userCat, groupCat sql.NullString
	var external, recurrence, recurrenceGroup, reconciledBy, duplicateOf, notes sql.NullString
	var exchangeRate, dupConfidence sql.NullFloat64
	var reconciledAt sql.NullTime
	if err := row.Scan(&t.ID, &t.AccountID, &t.InstitutionID, &t.UserID, &t.Amount, &t.TransactionType, &t.TransactionDate,
		&t.Name, &description, &merchant, &category, &subcategory, &custom, &userCat, &groupCat,
		&t.Status, &t.IsPending, &t.Source, &external, &t.Currency, &exchangeRate, &t.IsRecurring, &recurrence,
		&recurrenceGroup, &t.IsReconciled, &reconciledAt, &reconciledBy, &dupConfidence, &duplicateOf,
		&notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.TransactionDate = t.TransactionDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Description = strPtr(description)
	t.MerchantName = strPtr(merchant)
	if category.Valid {
		c := SystemCategory(category.String)
		t.Category = &c
	}
	t.Subcategory = strPtr(subcategory)
	t.CustomCategory = strPtr(custom)
	t.UserCategoryID = strPtr(userCat)
	t.GroupCategoryID = strPtr(groupCat)
	t.ExternalID = strPtr(external)
	t.ExchangeRate = floatPtr(exchangeRate)
	if recurrence.Valid {
		p := RecurrencePattern(recurrence.String)
		t.RecurrencePattern = &p
	}
	t.RecurrenceGroupID = strPtr(recurrenceGroup)
	t.ReconciledAt = timePtr(reconciledAt)
	t.ReconciledBy = strPtr(reconciledBy)
	t.DuplicateConfidence = floatPtr(dupConfidence)
	t.DuplicateOfID = strPtr(duplicateOf)
	t.Notes = strPtr(notes)
	return t, nil
}

func nullSystemCategory(c *SystemCategory) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func nullRecurrence(p *RecurrencePattern) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}
