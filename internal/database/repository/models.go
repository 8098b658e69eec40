package repository

import "time"

// Transaction represents a transaction row.
type Transaction struct {
	ID            string
	AccountID     string
	InstitutionID string
	UserID        string

	Amount          float64
	TransactionType TransactionType
	TransactionDate time.Time
	Name            string
	Description     *string
	MerchantName    *string

	Category        *SystemCategory
	Subcategory     *string
	CustomCategory  *string
	UserCategoryID  *string
	GroupCategoryID *string

	Status       Status
	IsPending    bool
	Source       Source
	ExternalID   *string
	Currency     string
	ExchangeRate *float64

	IsRecurring       bool
	RecurrencePattern *RecurrencePattern
	RecurrenceGroupID *string

	IsReconciled bool
	ReconciledAt *time.Time
	ReconciledBy *string

	DuplicateConfidence *float64
	DuplicateOfID       *string

	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AbsoluteAmount is |Amount|.
func (t Transaction) AbsoluteAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// IsDebit reports money leaving the account.
func (t Transaction) IsDebit() bool { return t.Amount < 0 }

// IsCredit reports money entering the account. Zero counts as credit.
func (t Transaction) IsCredit() bool { return t.Amount >= 0 }

// EffectiveCategoryID resolves the user-defined category; the group category
// wins when both are set.
func (t Transaction) EffectiveCategoryID() *string {
	if t.GroupCategoryID != nil {
		return t.GroupCategoryID
	}
	return t.UserCategoryID
}

// Category represents a node in an owner's category tree.
type Category struct {
	ID          string
	Owner       Owner
	ParentID    *string
	Name        string
	Description *string
	Level       int
	Path        string

	IsIncome      bool
	IsExpense     bool
	BudgetMonthly *float64
	BudgetWeekly  *float64
	BudgetYearly  *float64
	IsActive      bool
	SortOrder     int

	TransactionCount int
	TotalAmount      float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CategoryRule is an automatic categorization rule.
type CategoryRule struct {
	ID         string
	Owner      Owner
	CategoryID string
	Name       string

	MerchantPattern    *string
	NamePattern        *string
	DescriptionPattern *string
	AmountMin          *float64
	AmountMax          *float64
	TransactionType    *TransactionType

	IsActive            bool
	Priority            int
	ConfidenceThreshold float64

	MatchCount  int
	LastMatched *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reconciliation is an immutable record of one reconciliation run.
type Reconciliation struct {
	ID                 string
	AccountID          string
	ReconciliationDate time.Time
	StatementBalance   float64
	CalculatedBalance  float64
	Difference         float64
	IsBalanced         bool
	ReconciledCount    int
	PerformedBy        string
	Notes              *string
	CreatedAt          time.Time
}

// HistoryEntry is one append-only modification record.
type HistoryEntry struct {
	ID            int64
	TransactionID string
	Action        HistoryAction
	FieldName     *string
	OldValue      *string
	NewValue      *string
	ModifiedBy    string
	Reason        *string
	CreatedAt     time.Time
}
