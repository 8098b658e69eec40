package service

import (
	"strconv"
	"time"

	"github.com/jask/ledger/internal/database/repository"
)

// FieldChange is one differing field between two versions of a record.
type FieldChange struct {
	Field string
	Old   *string
	New   *string
}

// diffTransaction compares the audited transaction fields of a and b.
func diffTransaction(a, b repository.Transaction) []FieldChange {
	var out []FieldChange
	add := func(field string, oldV, newV *string) {
		if !sameValue(oldV, newV) {
			out = append(out, FieldChange{Field: field, Old: oldV, New: newV})
		}
	}
	add("amount", fmtFloat(&a.Amount), fmtFloat(&b.Amount))
	add("transaction_type", val(string(a.TransactionType)), val(string(b.TransactionType)))
	add("transaction_date", fmtDate(&a.TransactionDate), fmtDate(&b.TransactionDate))
	add("name", val(a.Name), val(b.Name))
	add("description", a.Description, b.Description)
	add("merchant_name", a.MerchantName, b.MerchantName)
	add("category", fmtSystemCategory(a.Category), fmtSystemCategory(b.Category))
	add("subcategory", a.Subcategory, b.Subcategory)
	add("custom_category", a.CustomCategory, b.CustomCategory)
	add("user_category_id", a.UserCategoryID, b.UserCategoryID)
	add("group_category_id", a.GroupCategoryID, b.GroupCategoryID)
	add("status", val(string(a.Status)), val(string(b.Status)))
	add("is_pending", fmtBool(a.IsPending), fmtBool(b.IsPending))
	add("exchange_rate", fmtFloat(a.ExchangeRate), fmtFloat(b.ExchangeRate))
	add("is_recurring", fmtBool(a.IsRecurring), fmtBool(b.IsRecurring))
	add("recurrence_pattern", fmtRecurrence(a.RecurrencePattern), fmtRecurrence(b.RecurrencePattern))
	add("recurrence_group_id", a.RecurrenceGroupID, b.RecurrenceGroupID)
	add("is_reconciled", fmtBool(a.IsReconciled), fmtBool(b.IsReconciled))
	add("reconciled_at", fmtTime(a.ReconciledAt), fmtTime(b.ReconciledAt))
	add("reconciled_by", a.ReconciledBy, b.ReconciledBy)
	add("duplicate_confidence", fmtFloat(a.DuplicateConfidence), fmtFloat(b.DuplicateConfidence))
	add("duplicate_of_id", a.DuplicateOfID, b.DuplicateOfID)
	add("notes", a.Notes, b.Notes)
	return out
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func val(s string) *string { return &s }

func fmtFloat(f *float64) *string {
	if f == nil {
		return nil
	}
	return val(strconv.FormatFloat(*f, 'f', -1, 64))
}

func fmtBool(b bool) *string { return val(strconv.FormatBool(b)) }

func fmtDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return val(t.UTC().Format(time.DateOnly))
}

func fmtTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return val(t.UTC().Format(time.RFC3339))
}

func fmtSystemCategory(c *repository.SystemCategory) *string {
	if c == nil {
		return nil
	}
	return val(string(*c))
}

func fmtRecurrence(p *repository.RecurrencePattern) *string {
	if p == nil {
		return nil
	}
	return val(string(*p))
}
