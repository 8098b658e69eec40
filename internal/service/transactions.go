package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
)

// CreateTransactionInput carries a new ledger entry.
type CreateTransactionInput struct {
	AccountID     string
	InstitutionID string
	UserID        string

	Amount          float64
	TransactionType repository.TransactionType // defaults from the sign of Amount
	TransactionDate time.Time
	Name            string
	Description     *string
	MerchantName    *string

	Category        *repository.SystemCategory
	Subcategory     *string
	CustomCategory  *string
	UserCategoryID  *string
	GroupCategoryID *string

	Status       repository.Status // defaults to pending
	Source       repository.Source // defaults to manual
	ExternalID   *string
	Currency     string // defaults to USD
	ExchangeRate *float64

	IsRecurring       bool
	RecurrencePattern *repository.RecurrencePattern
	RecurrenceGroupID *string

	Notes *string
	Actor string
}

// TransactionPatch lists fields to change; nil leaves a field alone. For
// optional text and reference fields an empty string clears the value.
type TransactionPatch struct {
	Amount          *float64
	TransactionType *repository.TransactionType
	TransactionDate *time.Time
	Name            *string
	Description     *string
	MerchantName    *string

	Category        *repository.SystemCategory
	Subcategory     *string
	CustomCategory  *string
	UserCategoryID  *string
	GroupCategoryID *string

	Status       *repository.Status
	ExchangeRate *float64

	IsRecurring       *bool
	RecurrencePattern *repository.RecurrencePattern
	RecurrenceGroupID *string

	Notes *string

	// Reason is copied onto every history entry written for the patch.
	Reason string
}

// BulkUpdateResult splits a batch into what was written and what was not.
type BulkUpdateResult struct {
	Updated []repository.Transaction
	Failed  map[string]error
}

// duplicateChecker searches stored transactions for duplicates of a
// candidate, reading through the creating transaction's repo.
type duplicateChecker interface {
	check(ctx context.Context, txs *repository.TransactionRepo, in DuplicateCheck) (DuplicateResult, error)
}

// TransactionStore owns the transaction record lifecycle and its history.
// Detector is usually a *DuplicateDetector; nil skips detection.
type TransactionStore struct {
	DB       *sql.DB
	Detector duplicateChecker
	Options  Options
}

// Create validates in, runs duplicate detection in the same database
// transaction as the insert, and records a create history entry. Flagged
// duplicates are still stored.
func (s *TransactionStore) Create(ctx context.Context, in CreateTransactionInput) (repository.Transaction, error) {
	t, err := s.newTransaction(in)
	if err != nil {
		return repository.Transaction{}, err
	}
	err = inTx(ctx, s.DB, func(q queries) error {
		var err error
		t, err = s.create(ctx, q, t, in.Actor)
		return err
	})
	if err != nil {
		return repository.Transaction{}, err
	}
	return t, nil
}

func (s *TransactionStore) create(ctx context.Context, q queries, t repository.Transaction, actor string) (repository.Transaction, error) {
	log := logger.FromContext(ctx)

	for _, ref := range []*string{t.UserCategoryID, t.GroupCategoryID} {
		if ref == nil {
			continue
		}
		c, err := q.cats.Get(ctx, *ref)
		if err != nil {
			return t, fmt.Errorf("create transaction: category lookup: %w", err)
		}
		if c == nil {
			return t, invalid("category_id", "category %s does not exist", *ref)
		}
	}

	reason := ""
	if s.Detector != nil {
		dup, err := s.Detector.check(ctx, q.txs, DuplicateCheck{
			AccountID:    t.AccountID,
			Amount:       t.Amount,
			Date:         t.TransactionDate,
			Name:         t.Name,
			MerchantName: t.MerchantName,
			Source:       t.Source,
			ExternalID:   t.ExternalID,
		})
		switch {
		case err != nil:
			log.Warn().Err(err).Str("account_id", t.AccountID).Msg("duplicate detection failed, treating as unique")
		case dup.IsDuplicate:
			conf := dup.Confidence
			t.DuplicateConfidence = &conf
			t.DuplicateOfID = dup.DuplicateOfID
			reason = "possible duplicate of " + *dup.DuplicateOfID
			log.Debug().Str("duplicate_of", *dup.DuplicateOfID).Float64("confidence", conf).Msg("flagged duplicate")
		}
	}

	if err := q.txs.Insert(ctx, t); err != nil {
		return t, fmt.Errorf("create transaction: insert: %w", err)
	}
	if err := q.history.Append(ctx, repository.HistoryEntry{
		TransactionID: t.ID,
		Action:        repository.ActionCreate,
		NewValue:      val(t.Name),
		ModifiedBy:    actorOrSystem(actor),
		Reason:        optional(reason),
		CreatedAt:     t.CreatedAt,
	}); err != nil {
		return t, fmt.Errorf("create transaction: history: %w", err)
	}
	if err := moveUsage(ctx, q, nil, &t); err != nil {
		return t, fmt.Errorf("create transaction: usage: %w", err)
	}
	return t, nil
}

func (s *TransactionStore) newTransaction(in CreateTransactionInput) (repository.Transaction, error) {
	switch {
	case strings.TrimSpace(in.AccountID) == "":
		return repository.Transaction{}, invalid("account_id", "required")
	case strings.TrimSpace(in.InstitutionID) == "":
		return repository.Transaction{}, invalid("institution_id", "required")
	case strings.TrimSpace(in.UserID) == "":
		return repository.Transaction{}, invalid("user_id", "required")
	case strings.TrimSpace(in.Name) == "":
		return repository.Transaction{}, invalid("name", "required")
	case in.TransactionDate.IsZero():
		return repository.Transaction{}, invalid("transaction_date", "required")
	}

	txType := in.TransactionType
	if txType == "" {
		txType = repository.TypeCredit
		if in.Amount < 0 {
			txType = repository.TypeDebit
		}
	}
	if !txType.Valid() {
		return repository.Transaction{}, invalid("transaction_type", "unknown type %q", txType)
	}
	status := in.Status
	if status == "" {
		status = repository.StatusPending
	}
	switch status {
	case repository.StatusPending, repository.StatusCleared, repository.StatusFailed:
	default:
		return repository.Transaction{}, invalid("status", "cannot create a transaction as %q", status)
	}
	source := in.Source
	if source == "" {
		source = repository.SourceManual
	}
	if !source.Valid() {
		return repository.Transaction{}, invalid("source", "unknown source %q", source)
	}
	if in.Category != nil && !in.Category.Valid() {
		return repository.Transaction{}, invalid("category", "unknown category %q", *in.Category)
	}
	if in.RecurrencePattern != nil && !in.RecurrencePattern.Valid() {
		return repository.Transaction{}, invalid("recurrence_pattern", "unknown pattern %q", *in.RecurrencePattern)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := database.Now()
	return repository.Transaction{
		ID:                uuid.NewString(),
		AccountID:         in.AccountID,
		InstitutionID:     in.InstitutionID,
		UserID:            in.UserID,
		Amount:            in.Amount,
		TransactionType:   txType,
		TransactionDate:   database.Day(in.TransactionDate),
		Name:              strings.TrimSpace(in.Name),
		Description:       optionalPtr(in.Description),
		MerchantName:      optionalPtr(in.MerchantName),
		Category:          in.Category,
		Subcategory:       optionalPtr(in.Subcategory),
		CustomCategory:    optionalPtr(in.CustomCategory),
		UserCategoryID:    optionalPtr(in.UserCategoryID),
		GroupCategoryID:   optionalPtr(in.GroupCategoryID),
		Status:            status,
		IsPending:         status == repository.StatusPending,
		Source:            source,
		ExternalID:        optionalPtr(in.ExternalID),
		Currency:          currency,
		ExchangeRate:      in.ExchangeRate,
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: in.RecurrencePattern,
		RecurrenceGroupID: optionalPtr(in.RecurrenceGroupID),
		Notes:             optionalPtr(in.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Get returns the transaction or ErrNotFound.
func (s *TransactionStore) Get(ctx context.Context, id string) (repository.Transaction, error) {
	t, err := repository.NewTransactionRepo(s.DB).Get(ctx, id)
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t == nil {
		return repository.Transaction{}, notFound("transaction", id)
	}
	return *t, nil
}

func (s *TransactionStore) List(ctx context.Context, f repository.TransactionFilters) ([]repository.Transaction, error) {
	return repository.NewTransactionRepo(s.DB).List(ctx, f)
}

// History returns the transaction's modification history, oldest first.
func (s *TransactionStore) History(ctx context.Context, id string) ([]repository.HistoryEntry, error) {
	return repository.NewHistoryRepo(s.DB).ForTransaction(ctx, id)
}

// Update applies patch, writing one history entry per changed field before
// the new state is committed.
func (s *TransactionStore) Update(ctx context.Context, id string, patch TransactionPatch, actor string) (repository.Transaction, error) {
	var out repository.Transaction
	err := inTx(ctx, s.DB, func(q queries) error {
		var err error
		out, err = s.update(ctx, q, id, patch, actor)
		return err
	})
	return out, err
}

func (s *TransactionStore) update(ctx context.Context, q queries, id string, patch TransactionPatch, actor string) (repository.Transaction, error) {
	current, err := q.txs.Get(ctx, id)
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if current == nil {
		return repository.Transaction{}, notFound("transaction", id)
	}
	if current.Status == repository.StatusCancelled {
		return repository.Transaction{}, invalid("status", "transaction %s is cancelled", id)
	}

	now := database.Now()
	next, err := applyPatch(ctx, q, *current, patch, actorOrSystem(actor), now)
	if err != nil {
		return repository.Transaction{}, err
	}
	changes := diffTransaction(*current, next)
	if len(changes) == 0 {
		return *current, nil
	}
	return next, s.commit(ctx, q, *current, next, changes, repository.ActionUpdate, actor, patch.Reason, now)
}

// commit records history for changes, then writes next.
func (s *TransactionStore) commit(ctx context.Context, q queries, prev, next repository.Transaction, changes []FieldChange, action repository.HistoryAction, actor, reason string, at time.Time) error {
	for _, c := range changes {
		field := c.Field
		if err := q.history.Append(ctx, repository.HistoryEntry{
			TransactionID: next.ID,
			Action:        action,
			FieldName:     &field,
			OldValue:      c.Old,
			NewValue:      c.New,
			ModifiedBy:    actorOrSystem(actor),
			Reason:        optional(reason),
			CreatedAt:     at,
		}); err != nil {
			return fmt.Errorf("transaction %s: history: %w", next.ID, err)
		}
	}
	next.UpdatedAt = at
	if err := q.txs.Update(ctx, next); err != nil {
		return fmt.Errorf("transaction %s: write: %w", next.ID, err)
	}
	if err := moveUsage(ctx, q, &prev, &next); err != nil {
		return fmt.Errorf("transaction %s: usage: %w", next.ID, err)
	}
	return nil
}

func applyPatch(ctx context.Context, q queries, t repository.Transaction, p TransactionPatch, actor string, at time.Time) (repository.Transaction, error) {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.TransactionType != nil {
		if !p.TransactionType.Valid() {
			return t, invalid("transaction_type", "unknown type %q", *p.TransactionType)
		}
		t.TransactionType = *p.TransactionType
	}
	if p.TransactionDate != nil {
		if p.TransactionDate.IsZero() {
			return t, invalid("transaction_date", "required")
		}
		t.TransactionDate = database.Day(*p.TransactionDate)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return t, invalid("name", "required")
		}
		t.Name = name
	}
	if p.Description != nil {
		t.Description = optional(*p.Description)
	}
	if p.MerchantName != nil {
		t.MerchantName = optional(*p.MerchantName)
	}
	if p.Category != nil {
		if *p.Category == "" {
			t.Category = nil
		} else if !p.Category.Valid() {
			return t, invalid("category", "unknown category %q", *p.Category)
		} else {
			c := *p.Category
			t.Category = &c
		}
	}
	if p.Subcategory != nil {
		t.Subcategory = optional(*p.Subcategory)
	}
	if p.CustomCategory != nil {
		t.CustomCategory = optional(*p.CustomCategory)
	}
	for _, ref := range []struct {
		in  *string
		out **string
	}{{p.UserCategoryID, &t.UserCategoryID}, {p.GroupCategoryID, &t.GroupCategoryID}} {
		if ref.in == nil {
			continue
		}
		id := optional(*ref.in)
		if id != nil {
			c, err := q.cats.Get(ctx, *id)
			if err != nil {
				return t, fmt.Errorf("category lookup: %w", err)
			}
			if c == nil {
				return t, invalid("category_id", "category %s does not exist", *id)
			}
		}
		*ref.out = id
	}
	if p.ExchangeRate != nil {
		r := *p.ExchangeRate
		t.ExchangeRate = &r
	}
	if p.IsRecurring != nil {
		t.IsRecurring = *p.IsRecurring
	}
	if p.RecurrencePattern != nil {
		if *p.RecurrencePattern == "" {
			t.RecurrencePattern = nil
		} else if !p.RecurrencePattern.Valid() {
			return t, invalid("recurrence_pattern", "unknown pattern %q", *p.RecurrencePattern)
		} else {
			rp := *p.RecurrencePattern
			t.RecurrencePattern = &rp
		}
	}
	if p.RecurrenceGroupID != nil {
		t.RecurrenceGroupID = optional(*p.RecurrenceGroupID)
	}
	if p.Notes != nil {
		t.Notes = optional(*p.Notes)
	}
	if p.Status != nil {
		if err := setStatus(&t, *p.Status, actor, at); err != nil {
			return t, err
		}
	}
	return t, nil
}

// SoftDelete cancels the transaction. It reports false when the transaction
// does not exist; cancelling twice is a no-op that reports true.
func (s *TransactionStore) SoftDelete(ctx context.Context, id, actor string) (bool, error) {
	found := false
	err := inTx(ctx, s.DB, func(q queries) error {
		current, err := q.txs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		if current == nil {
			return nil
		}
		found = true
		if current.Status == repository.StatusCancelled {
			return nil
		}
		now := database.Now()
		next := *current
		if err := setStatus(&next, repository.StatusCancelled, actorOrSystem(actor), now); err != nil {
			return err
		}
		return s.commit(ctx, q, *current, next, diffTransaction(*current, next), repository.ActionDelete, actor, "", now)
	})
	return found, err
}

// BulkUpdate applies patch to each id on its own. Failures are collected per
// id and do not stop the batch.
func (s *TransactionStore) BulkUpdate(ctx context.Context, ids []string, patch TransactionPatch, actor string) (BulkUpdateResult, error) {
	limit := s.opts().MaxBulkItems
	if len(ids) > limit {
		return BulkUpdateResult{}, invalid("ids", "at most %d transactions per batch, got %d", limit, len(ids))
	}
	res := BulkUpdateResult{Failed: map[string]error{}}
	for _, id := range ids {
		t, err := s.Update(ctx, id, patch, actor)
		if err != nil {
			res.Failed[id] = err
			continue
		}
		res.Updated = append(res.Updated, t)
	}
	return res, nil
}

func (s *TransactionStore) opts() Options {
	if s.Options == (Options{}) {
		return DefaultOptions()
	}
	return s.Options
}

// moveUsage shifts category usage counters from prev's category to next's.
// Either side may be nil; cancelled transactions do not count.
func moveUsage(ctx context.Context, q queries, prev, next *repository.Transaction) error {
	type usage struct {
		id     string
		amount float64
	}
	counted := func(t *repository.Transaction) *usage {
		if t == nil || t.Status == repository.StatusCancelled {
			return nil
		}
		id := t.EffectiveCategoryID()
		if id == nil {
			return nil
		}
		return &usage{id: *id, amount: t.Amount}
	}
	before, after := counted(prev), counted(next)
	if before != nil && after != nil && *before == *after {
		return nil
	}
	if before != nil {
		if err := q.cats.AdjustUsage(ctx, before.id, -1, -before.amount); err != nil {
			return err
		}
	}
	if after != nil {
		if err := q.cats.AdjustUsage(ctx, after.id, 1, after.amount); err != nil {
			return err
		}
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return "system"
	}
	return actor
}
