package repository

import (
	"context"
	"database/sql"
	"time"
)

const ruleColumns = `id, user_id, group_id, category_id, name, merchant_pattern, name_pattern, description_pattern,
 amount_min, amount_max, transaction_type, is_active, priority, confidence_threshold, match_count, last_matched,
 created_at, updated_at`

// RuleRepo stores categorization rules.
type RuleRepo struct{ db DBTX }

func NewRuleRepo(db DBTX) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) Insert(ctx context.Context, cr CategoryRule) error {
	if cr.Owner.IsZero() {
		return errNoOwner
	}
	userID, groupID := cr.Owner.columns()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO category_rules(`+ruleColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cr.ID, userID, groupID, cr.CategoryID, cr.Name, nullString(cr.MerchantPattern), nullString(cr.NamePattern),
		nullString(cr.DescriptionPattern), nullFloat(cr.AmountMin), nullFloat(cr.AmountMax), nullTxType(cr.TransactionType),
		cr.IsActive, cr.Priority, cr.ConfidenceThreshold, cr.MatchCount, nullTime(cr.LastMatched), cr.CreatedAt, cr.UpdatedAt)
	return err
}

// Update writes the rule definition; usage stats go through RecordMatch.
func (r *RuleRepo) Update(ctx context.Context, cr CategoryRule) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE category_rules SET
	 category_id = ?, name = ?, merchant_pattern = ?, name_pattern = ?, description_pattern = ?,
	 amount_min = ?, amount_max = ?, transaction_type = ?, is_active = ?, priority = ?,
	 confidence_threshold = ?, updated_at = ?
	WHERE id = ?
	`, cr.CategoryID, cr.Name, nullString(cr.MerchantPattern), nullString(cr.NamePattern), nullString(cr.DescriptionPattern),
		nullFloat(cr.AmountMin), nullFloat(cr.AmountMax), nullTxType(cr.TransactionType), cr.IsActive, cr.Priority,
		cr.ConfidenceThreshold, cr.UpdatedAt, cr.ID)
	return err
}

// RecordMatch bumps match_count and stamps last_matched.
func (r *RuleRepo) RecordMatch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE category_rules SET match_count = match_count + 1, last_matched = ? WHERE id = ?`, at, id)
	return err
}

// Retarget points every rule aimed at from to the category to.
func (r *RuleRepo) Retarget(ctx context.Context, from, to string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE category_rules SET category_id = ?, updated_at = ? WHERE category_id = ?`, to, at, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RuleRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM category_rules WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*CategoryRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM category_rules WHERE id = ?`, id)
	cr, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &cr, nil
}

// Active returns the owner's active rules, highest priority first. Ties keep
// creation order.
func (r *RuleRepo) Active(ctx context.Context, owner Owner) ([]CategoryRule, error) {
	clause, arg := ownerWhere(owner)
	return r.query(ctx, `SELECT `+ruleColumns+` FROM category_rules WHERE `+clause+` AND is_active = 1
	ORDER BY priority DESC, created_at, id`, arg)
}

func (r *RuleRepo) List(ctx context.Context, owner Owner) ([]CategoryRule, error) {
	clause, arg := ownerWhere(owner)
	return r.query(ctx, `SELECT `+ruleColumns+` FROM category_rules WHERE `+clause+` ORDER BY priority DESC, created_at, id`, arg)
}

func (r *RuleRepo) query(ctx context.Context, query string, args ...interface{}) ([]CategoryRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryRule
	for rows.Next() {
		cr, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func scanRule(row scanner) (CategoryRule, error) {
	var cr CategoryRule
	var userID, groupID, merchant, name, description, txType sql.NullString
	var amountMin, amountMax sql.NullFloat64
	var lastMatched sql.NullTime
	if err := row.Scan(&cr.ID, &userID, &groupID, &cr.CategoryID, &cr.Name, &merchant, &name, &description,
		&amountMin, &amountMax, &txType, &cr.IsActive, &cr.Priority, &cr.ConfidenceThreshold, &cr.MatchCount,
		&lastMatched, &cr.CreatedAt, &cr.UpdatedAt); err != nil {
		return CategoryRule{}, err
	}
	owner, err := ownerFromColumns(userID, groupID)
	if err != nil {
		return CategoryRule{}, err
	}
	cr.Owner = owner
	cr.MerchantPattern = strPtr(merchant)
	cr.NamePattern = strPtr(name)
	cr.DescriptionPattern = strPtr(description)
	cr.AmountMin = floatPtr(amountMin)
	cr.AmountMax = floatPtr(amountMax)
	if txType.Valid {
		tt := TransactionType(txType.String)
		cr.TransactionType = &tt
	}
	cr.LastMatched = timePtr(lastMatched)
	cr.CreatedAt = cr.CreatedAt.UTC()
	cr.UpdatedAt = cr.UpdatedAt.UTC()
	return cr, nil
}

func nullTxType(t *TransactionType) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}
