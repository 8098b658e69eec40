package repository

import (
	"context"
	"database/sql"
	"time"
)

const categoryColumns = `id, user_id, group_id, parent_id, name, description, level, path, is_income, is_expense,
 budget_monthly, budget_weekly, budget_yearly, is_active, sort_order, transaction_count, total_amount,
 created_at, updated_at`

// CategoryRepo handles category tree nodes.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Insert(ctx context.Context, c Category) error {
	if c.Owner.IsZero() {
		return errNoOwner
	}
	userID, groupID := c.Owner.columns()
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transaction_categories(`+categoryColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, userID, groupID, nullString(c.ParentID), c.Name, nullString(c.Description), c.Level, c.Path,
		c.IsIncome, c.IsExpense, nullFloat(c.BudgetMonthly), nullFloat(c.BudgetWeekly), nullFloat(c.BudgetYearly),
		c.IsActive, c.SortOrder, c.TransactionCount, c.TotalAmount, c.CreatedAt, c.UpdatedAt)
	return err
}

// Update writes the editable columns of c. Usage counters are only changed
// through AdjustUsage.
func (r *CategoryRepo) Update(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transaction_categories SET
	 parent_id = ?, name = ?, description = ?, level = ?, path = ?, is_income = ?, is_expense = ?,
	 budget_monthly = ?, budget_weekly = ?, budget_yearly = ?, is_active = ?, sort_order = ?, updated_at = ?
	WHERE id = ?
	`, nullString(c.ParentID), c.Name, nullString(c.Description), c.Level, c.Path, c.IsIncome, c.IsExpense,
		nullFloat(c.BudgetMonthly), nullFloat(c.BudgetWeekly), nullFloat(c.BudgetYearly), c.IsActive, c.SortOrder,
		c.UpdatedAt, c.ID)
	return err
}

// SetPath rewrites only the derived position columns of a node.
func (r *CategoryRepo) SetPath(ctx context.Context, id, path string, level int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transaction_categories SET path = ?, level = ?, updated_at = ? WHERE id = ?`, path, level, at, id)
	return err
}

// AdjustUsage moves the running counters by the given deltas.
func (r *CategoryRepo) AdjustUsage(ctx context.Context, id string, count int, amount float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transaction_categories SET
	 transaction_count = MAX(transaction_count + ?, 0),
	 total_amount = ROUND(total_amount + ?, 2)
	WHERE id = ?`, count, amount, id)
	return err
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transaction_categories WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CategoryRepo) Get(ctx context.Context, id string) (*Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM transaction_categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Children returns the direct children of parentID.
func (r *CategoryRepo) Children(ctx context.Context, parentID string) ([]Category, error) {
	return r.query(ctx, `SELECT `+categoryColumns+` FROM transaction_categories WHERE parent_id = ? ORDER BY sort_order, name`, parentID)
}

// List returns the owner's categories; activeOnly drops inactive nodes.
func (r *CategoryRepo) List(ctx context.Context, owner Owner, activeOnly bool) ([]Category, error) {
	clause, arg := ownerWhere(owner)
	query := `SELECT ` + categoryColumns + ` FROM transaction_categories WHERE ` + clause
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY level, sort_order, name`
	return r.query(ctx, query, arg)
}

func (r *CategoryRepo) query(ctx context.Context, query string, args ...interface{}) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCategory(row scanner) (Category, error) {
	var c Category
	var userID, groupID, parentID, description sql.NullString
	var monthly, weekly, yearly sql.NullFloat64
	if err := row.Scan(&c.ID, &userID, &groupID, &parentID, &c.Name, &description, &c.Level, &c.Path,
		&c.IsIncome, &c.IsExpense, &monthly, &weekly, &yearly, &c.IsActive, &c.SortOrder,
		&c.TransactionCount, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Category{}, err
	}
	owner, err := ownerFromColumns(userID, groupID)
	if err != nil {
		return Category{}, err
	}
	c.Owner = owner
	c.ParentID = strPtr(parentID)
	c.Description = strPtr(description)
	c.BudgetMonthly = floatPtr(monthly)
	c.BudgetWeekly = floatPtr(weekly)
	c.BudgetYearly = floatPtr(yearly)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
