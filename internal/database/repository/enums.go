package repository

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeDebit      TransactionType = "debit"
	TypeCredit     TransactionType = "credit"
	TypeTransfer   TransactionType = "transfer"
	TypePayment    TransactionType = "payment"
	TypeFee        TransactionType = "fee"
	TypeInterest   TransactionType = "interest"
	TypeDividend   TransactionType = "dividend"
	TypeAdjustment TransactionType = "adjustment"
	TypeOther      TransactionType = "other"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDebit, TypeCredit, TypeTransfer, TypePayment, TypeFee,
		TypeInterest, TypeDividend, TypeAdjustment, TypeOther:
		return true
	}
	return false
}

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCleared    Status = "cleared"
	StatusReconciled Status = "reconciled"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCleared, StatusReconciled, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Source records where a transaction came from.
type Source string

const (
	SourcePlaid     Source = "plaid"
	SourceManual    Source = "manual"
	SourceCSVImport Source = "csv_import"
	SourceAPI       Source = "api"
	SourceOther     Source = "other"
)

func (s Source) Valid() bool {
	switch s {
	case SourcePlaid, SourceManual, SourceCSVImport, SourceAPI, SourceOther:
		return true
	}
	return false
}

// RecurrencePattern is the cadence of a recurring transaction.
type RecurrencePattern string

const (
	RecurDaily        RecurrencePattern = "daily"
	RecurWeekly       RecurrencePattern = "weekly"
	RecurBiweekly     RecurrencePattern = "biweekly"
	RecurMonthly      RecurrencePattern = "monthly"
	RecurQuarterly    RecurrencePattern = "quarterly"
	RecurSemiannually RecurrencePattern = "semiannually"
	RecurAnnually     RecurrencePattern = "annually"
	RecurIrregular    RecurrencePattern = "irregular"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurBiweekly, RecurMonthly, RecurQuarterly,
		RecurSemiannually, RecurAnnually, RecurIrregular:
		return true
	}
	return false
}

// SystemCategory is the built-in coarse category assigned by a feed.
type SystemCategory string

const (
	CategoryIncome             SystemCategory = "income"
	CategoryTransferIn         SystemCategory = "transfer_in"
	CategoryTransferOut        SystemCategory = "transfer_out"
	CategoryLoanPayments       SystemCategory = "loan_payments"
	CategoryBankFees           SystemCategory = "bank_fees"
	CategoryEntertainment      SystemCategory = "entertainment"
	CategoryFoodAndDrink       SystemCategory = "food_and_drink"
	CategoryGeneralMerchandise SystemCategory = "general_merchandise"
	CategoryHomeImprovement    SystemCategory = "home_improvement"
	CategoryMedical            SystemCategory = "medical"
	CategoryPersonalCare       SystemCategory = "personal_care"
	CategoryGeneralServices    SystemCategory = "general_services"
	CategoryGovernment         SystemCategory = "government_and_non_profit"
	CategoryTransportation     SystemCategory = "transportation"
	CategoryTravel             SystemCategory = "travel"
	CategoryRentAndUtilities   SystemCategory = "rent_and_utilities"
	CategoryOther              SystemCategory = "other"
)

func (c SystemCategory) Valid() bool {
	switch c {
	case CategoryIncome, CategoryTransferIn, CategoryTransferOut, CategoryLoanPayments,
		CategoryBankFees, CategoryEntertainment, CategoryFoodAndDrink, CategoryGeneralMerchandise,
		CategoryHomeImprovement, CategoryMedical, CategoryPersonalCare, CategoryGeneralServices,
		CategoryGovernment, CategoryTransportation, CategoryTravel, CategoryRentAndUtilities,
		CategoryOther:
		return true
	}
	return false
}

// HistoryAction is the kind of change recorded in modification history.
type HistoryAction string

const (
	ActionCreate    HistoryAction = "create"
	ActionUpdate    HistoryAction = "update"
	ActionDelete    HistoryAction = "delete"
	ActionReconcile HistoryAction = "reconcile"
)
