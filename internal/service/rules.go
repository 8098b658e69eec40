package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
)

const defaultConfidenceThreshold = 0.8

// RuleInput describes a new categorization rule.
type RuleInput struct {
	Owner      repository.Owner
	CategoryID string
	Name       string

	MerchantPattern    *string
	NamePattern        *string
	DescriptionPattern *string
	AmountMin          *float64
	AmountMax          *float64
	TransactionType    *repository.TransactionType

	IsActive            *bool // defaults to true
	Priority            int
	ConfidenceThreshold *float64 // defaults to 0.8
}

// RulePatch changes a rule; nil leaves a field alone and an empty pattern
// clears it.
type RulePatch struct {
	CategoryID          *string
	Name                *string
	MerchantPattern     *string
	NamePattern         *string
	DescriptionPattern  *string
	AmountMin           *float64
	AmountMax           *float64
	TransactionType     *repository.TransactionType
	IsActive            *bool
	Priority            *int
	ConfidenceThreshold *float64
}

// RuleTestResult is the outcome of a dry run. Nothing is written.
type RuleTestResult struct {
	Matches    []repository.Transaction
	MatchCount int
	WouldApply bool
}

// RuleEngine evaluates an owner's rules in priority order; the first match
// wins.
type RuleEngine struct {
	DB    *sql.DB
	Store *TransactionStore
}

func (e *RuleEngine) Create(ctx context.Context, in RuleInput) (repository.CategoryRule, error) {
	if in.Owner.IsZero() {
		return repository.CategoryRule{}, invalid("owner", "exactly one of user or group is required")
	}
	now := database.Now()
	r := repository.CategoryRule{
		ID:                  uuid.NewString(),
		Owner:               in.Owner,
		CategoryID:          in.CategoryID,
		Name:                strings.TrimSpace(in.Name),
		MerchantPattern:     optionalPtr(in.MerchantPattern),
		NamePattern:         optionalPtr(in.NamePattern),
		DescriptionPattern:  optionalPtr(in.DescriptionPattern),
		AmountMin:           in.AmountMin,
		AmountMax:           in.AmountMax,
		TransactionType:     in.TransactionType,
		IsActive:            in.IsActive == nil || *in.IsActive,
		Priority:            in.Priority,
		ConfidenceThreshold: defaultConfidenceThreshold,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.ConfidenceThreshold != nil {
		r.ConfidenceThreshold = *in.ConfidenceThreshold
	}
	if r.Name == "" {
		r.Name = "rule " + r.ID[:8]
	}

	err := inTx(ctx, e.DB, func(q queries) error {
		if err := validateRule(ctx, q, r); err != nil {
			return err
		}
		if err := q.rules.Insert(ctx, r); err != nil {
			return fmt.Errorf("create rule: insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return repository.CategoryRule{}, err
	}
	return r, nil
}

func validateRule(ctx context.Context, q queries, r repository.CategoryRule) error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return invalid("category_id", "required")
	}
	c, err := q.cats.Get(ctx, r.CategoryID)
	if err != nil {
		return fmt.Errorf("rule category lookup: %w", err)
	}
	if c == nil {
		return invalid("category_id", "category %s does not exist", r.CategoryID)
	}
	if c.Owner != r.Owner {
		return invalid("category_id", "category belongs to a different owner")
	}
	for field, p := range map[string]*string{
		"merchant_pattern":    r.MerchantPattern,
		"name_pattern":        r.NamePattern,
		"description_pattern": r.DescriptionPattern,
	} {
		if p == nil {
			continue
		}
		if _, err := compilePattern(*p); err != nil {
			return invalid(field, "invalid pattern: %v", err)
		}
	}
	if r.AmountMin != nil && r.AmountMax != nil && *r.AmountMin > *r.AmountMax {
		return invalid("amount_min", "greater than amount_max")
	}
	if r.TransactionType != nil && !r.TransactionType.Valid() {
		return invalid("transaction_type", "unknown type %q", *r.TransactionType)
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return invalid("confidence_threshold", "must be between 0 and 1")
	}
	return nil
}

// Get returns the rule or ErrNotFound.
func (e *RuleEngine) Get(ctx context.Context, id string) (repository.CategoryRule, error) {
	r, err := repository.NewRuleRepo(e.DB).Get(ctx, id)
	if err != nil {
		return repository.CategoryRule{}, fmt.Errorf("get rule: %w", err)
	}
	if r == nil {
		return repository.CategoryRule{}, notFound("rule", id)
	}
	return *r, nil
}

func (e *RuleEngine) List(ctx context.Context, owner repository.Owner) ([]repository.CategoryRule, error) {
	return repository.NewRuleRepo(e.DB).List(ctx, owner)
}

func (e *RuleEngine) Update(ctx context.Context, id string, p RulePatch) (repository.CategoryRule, error) {
	var out repository.CategoryRule
	err := inTx(ctx, e.DB, func(q queries) error {
		r, err := q.rules.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		if r == nil {
			return notFound("rule", id)
		}
		if p.CategoryID != nil {
			r.CategoryID = *p.CategoryID
		}
		if p.Name != nil && strings.TrimSpace(*p.Name) != "" {
			r.Name = strings.TrimSpace(*p.Name)
		}
		if p.MerchantPattern != nil {
			r.MerchantPattern = optional(*p.MerchantPattern)
		}
		if p.NamePattern != nil {
			r.NamePattern = optional(*p.NamePattern)
		}
		if p.DescriptionPattern != nil {
			r.DescriptionPattern = optional(*p.DescriptionPattern)
		}
		if p.AmountMin != nil {
			r.AmountMin = p.AmountMin
		}
		if p.AmountMax != nil {
			r.AmountMax = p.AmountMax
		}
		if p.TransactionType != nil {
			if *p.TransactionType == "" {
				r.TransactionType = nil
			} else {
				r.TransactionType = p.TransactionType
			}
		}
		if p.IsActive != nil {
			r.IsActive = *p.IsActive
		}
		if p.Priority != nil {
			r.Priority = *p.Priority
		}
		if p.ConfidenceThreshold != nil {
			r.ConfidenceThreshold = *p.ConfidenceThreshold
		}
		if err := validateRule(ctx, q, *r); err != nil {
			return err
		}
		r.UpdatedAt = database.Now()
		if err := q.rules.Update(ctx, *r); err != nil {
			return fmt.Errorf("update rule: write: %w", err)
		}
		out = *r
		return nil
	})
	return out, err
}

// Delete removes the rule; its category is untouched.
func (e *RuleEngine) Delete(ctx context.Context, id string) (bool, error) {
	return repository.NewRuleRepo(e.DB).Delete(ctx, id)
}

// Test evaluates one rule against the given transactions without writing.
// Unknown transaction IDs are skipped.
func (e *RuleEngine) Test(ctx context.Context, ruleID string, transactionIDs []string) (RuleTestResult, error) {
	q := newQueries(e.DB)
	r, err := q.rules.Get(ctx, ruleID)
	if err != nil {
		return RuleTestResult{}, fmt.Errorf("test rule: %w", err)
	}
	if r == nil {
		return RuleTestResult{}, notFound("rule", ruleID)
	}
	res := RuleTestResult{}
	for _, id := range transactionIDs {
		t, err := q.txs.Get(ctx, id)
		if err != nil {
			return RuleTestResult{}, fmt.Errorf("test rule: transaction %s: %w", id, err)
		}
		if t == nil {
			continue
		}
		if ruleMatches(*r, *t) {
			res.Matches = append(res.Matches, *t)
		}
	}
	res.MatchCount = len(res.Matches)
	res.WouldApply = r.IsActive && res.MatchCount > 0
	return res, nil
}

// ApplyToTransaction evaluates the owner's active rules against the
// transaction, highest priority first. The first match sets the category,
// bumps that rule's usage stats and stops evaluation. It returns the applied
// category ID, or nil when no rule matched or the transaction is cancelled.
func (e *RuleEngine) ApplyToTransaction(ctx context.Context, transactionID string, owner repository.Owner) (*string, error) {
	var applied *string
	err := inTx(ctx, e.DB, func(q queries) error {
		var err error
		applied, err = e.apply(ctx, q, transactionID, owner)
		return err
	})
	return applied, err
}

func (e *RuleEngine) apply(ctx context.Context, q queries, transactionID string, owner repository.Owner) (*string, error) {
	if owner.IsZero() {
		return nil, invalid("owner", "exactly one of user or group is required")
	}
	t, err := q.txs.Get(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("apply rules: %w", err)
	}
	if t == nil {
		return nil, notFound("transaction", transactionID)
	}
	if t.Status == repository.StatusCancelled {
		return nil, nil
	}
	rules, err := q.rules.Active(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("apply rules: load: %w", err)
	}
	for _, r := range rules {
		if !ruleMatches(r, *t) {
			continue
		}
		category := r.CategoryID
		patch := TransactionPatch{Reason: "rule:" + r.Name}
		if r.Owner.IsGroup() {
			patch.GroupCategoryID = &category
		} else {
			patch.UserCategoryID = &category
		}
		if _, err := e.store().update(ctx, q, t.ID, patch, owner.ID()); err != nil {
			return nil, err
		}
		if err := q.rules.RecordMatch(ctx, r.ID, database.Now()); err != nil {
			return nil, fmt.Errorf("apply rules: record match: %w", err)
		}
		log := logger.FromContext(ctx)
		log.Debug().Str("rule", r.Name).Str("transaction_id", t.ID).Msg("rule applied")
		return &category, nil
	}
	return nil, nil
}

// ApplyToUncategorized runs ApplyToTransaction over every uncategorized,
// non-cancelled transaction on the account and returns how many were
// categorized.
func (e *RuleEngine) ApplyToUncategorized(ctx context.Context, owner repository.Owner, accountID string) (int, error) {
	txs, err := repository.NewTransactionRepo(e.DB).List(ctx, repository.TransactionFilters{
		AccountID:     accountID,
		Uncategorized: true,
	})
	if err != nil {
		return 0, fmt.Errorf("apply rules: list: %w", err)
	}
	applied := 0
	for _, t := range txs {
		cat, err := e.ApplyToTransaction(ctx, t.ID, owner)
		if err != nil {
			return applied, err
		}
		if cat != nil {
			applied++
		}
	}
	return applied, nil
}

func (e *RuleEngine) store() *TransactionStore {
	if e.Store != nil {
		return e.Store
	}
	return &TransactionStore{DB: e.DB}
}
