package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledger/internal/database/repository"
)

func TestCreateDefaults(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	tx := mustCreate(t, ctx, e, txInput("  Coffee  ", -4.5, day(2024, 3, 15)))
	require.NotEmpty(t, tx.ID)
	require.Equal(t, "Coffee", tx.Name)
	require.Equal(t, repository.StatusPending, tx.Status)
	require.True(t, tx.IsPending)
	require.Equal(t, repository.SourceManual, tx.Source)
	require.Equal(t, repository.TypeDebit, tx.TransactionType)
	require.Equal(t, "USD", tx.Currency)
	require.True(t, tx.IsDebit())
	require.Equal(t, 4.5, tx.AbsoluteAmount())
	require.Nil(t, tx.DuplicateOfID)

	got, err := e.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.Name, got.Name)
	require.Equal(t, -4.5, got.Amount)
	require.True(t, got.TransactionDate.Equal(day(2024, 3, 15)))

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, repository.ActionCreate, history[0].Action)
	require.Equal(t, "user-1", history[0].ModifiedBy)
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	noAccount := txInput("Coffee", -4.5, day(2024, 3, 15))
	noAccount.AccountID = ""
	reconciled := txInput("Coffee", -4.5, day(2024, 3, 15))
	reconciled.Status = repository.StatusReconciled
	badCategory := txInput("Coffee", -4.5, day(2024, 3, 15))
	badCategory.UserCategoryID = strp("missing")

	for name, in := range map[string]CreateTransactionInput{
		"missing account":    noAccount,
		"missing name":       txInput(" ", -4.5, day(2024, 3, 15)),
		"created reconciled": reconciled,
		"unknown category":   badCategory,
	} {
		_, err := e.store.Create(ctx, in)
		require.Error(t, err, name)
		require.True(t, IsValidation(err), name)
	}

	txs, err := e.store.List(ctx, repository.TransactionFilters{})
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestCreateFlagsExactDuplicate(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	a := mustCreate(t, ctx, e, txInput("Netflix", -15.99, day(2024, 3, 1)))
	b := mustCreate(t, ctx, e, txInput("NETFLIX", -15.99, day(2024, 3, 2)))

	require.NotNil(t, b.DuplicateOfID)
	require.Equal(t, a.ID, *b.DuplicateOfID)
	require.NotNil(t, b.DuplicateConfidence)
	require.Equal(t, 0.95, *b.DuplicateConfidence)

	// flagged duplicates are still stored
	txs, err := e.store.List(ctx, repository.TransactionFilters{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, txs, 2)

	history, err := e.store.History(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Reason)
	require.Contains(t, *history[0].Reason, a.ID)
}

func TestCreateAmazonReferenceSuffix(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	a := mustCreate(t, ctx, e, txInput("Amazon.com", -49.99, day(2024, 3, 15)))
	b := mustCreate(t, ctx, e, txInput("AMAZON.COM*1A2B3", -49.99, day(2024, 3, 16)))

	require.NotNil(t, b.DuplicateOfID)
	require.Equal(t, a.ID, *b.DuplicateOfID)
	require.Equal(t, 0.95, *b.DuplicateConfidence)

	// different amount is never a duplicate
	c := mustCreate(t, ctx, e, txInput("Amazon.com", -49.98, day(2024, 3, 15)))
	require.Nil(t, c.DuplicateOfID)
}

type failingDetector struct{}

func (failingDetector) check(context.Context, *repository.TransactionRepo, DuplicateCheck) (DuplicateResult, error) {
	return DuplicateResult{}, errors.New("duplicate index unavailable")
}

func TestCreateProceedsWhenDetectorFails(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	mustCreate(t, ctx, e, txInput("Netflix", -15.99, day(2024, 3, 1)))

	store := &TransactionStore{DB: e.db, Detector: failingDetector{}, Options: DefaultOptions()}
	tx, err := store.Create(ctx, txInput("Netflix", -15.99, day(2024, 3, 1)))
	require.NoError(t, err)
	require.Nil(t, tx.DuplicateOfID)
	require.Nil(t, tx.DuplicateConfidence)

	got, err := e.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Nil(t, got.DuplicateOfID)

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].Reason)
}

func TestCreateKeepsLocalCalendarDate(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	melbourne := time.FixedZone("UTC+11", 11*3600)

	a := mustCreate(t, ctx, e, txInput("Woolworths", -62.1, time.Date(2024, 1, 10, 0, 0, 0, 0, melbourne)))
	require.True(t, a.TransactionDate.Equal(day(2024, 1, 10)), a.TransactionDate)

	got, err := e.store.Get(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.TransactionDate.Equal(day(2024, 1, 10)), got.TransactionDate)

	// three days later is still inside the duplicate window
	b := mustCreate(t, ctx, e, txInput("Woolworths", -62.1, day(2024, 1, 13)))
	require.NotNil(t, b.DuplicateOfID)
	require.Equal(t, a.ID, *b.DuplicateOfID)
}

func TestUpdateRecordsHistoryPerField(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	tx := mustCreate(t, ctx, e, txInput("Coffee", -4.5, day(2024, 3, 15)))
	amount := -5.25
	name := "Coffee Shop"
	updated, err := e.store.Update(ctx, tx.ID, TransactionPatch{
		Amount: &amount,
		Name:   &name,
		Reason: "receipt",
	}, "user-2")
	require.NoError(t, err)
	require.Equal(t, -5.25, updated.Amount)
	require.Equal(t, "Coffee Shop", updated.Name)

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, repository.ActionCreate, history[0].Action)

	fields := map[string]repository.HistoryEntry{}
	for _, h := range history[1:] {
		require.Equal(t, repository.ActionUpdate, h.Action)
		require.Equal(t, "user-2", h.ModifiedBy)
		require.NotNil(t, h.Reason)
		require.Equal(t, "receipt", *h.Reason)
		require.NotNil(t, h.FieldName)
		fields[*h.FieldName] = h
	}
	require.Equal(t, "-4.5", *fields["amount"].OldValue)
	require.Equal(t, "-5.25", *fields["amount"].NewValue)
	require.Equal(t, "Coffee", *fields["name"].OldValue)
	require.Equal(t, "Coffee Shop", *fields["name"].NewValue)

	// a patch that changes nothing writes nothing
	_, err = e.store.Update(ctx, tx.ID, TransactionPatch{Name: &name}, "user-2")
	require.NoError(t, err)
	history, err = e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestUpdateStatusTransitions(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	tx := mustCreate(t, ctx, e, txInput("Rent", -1200, day(2024, 3, 1)))
	cleared := repository.StatusCleared
	got, err := e.store.Update(ctx, tx.ID, TransactionPatch{Status: &cleared}, "")
	require.NoError(t, err)
	require.Equal(t, repository.StatusCleared, got.Status)
	require.False(t, got.IsPending)

	pending := repository.StatusPending
	_, err = e.store.Update(ctx, tx.ID, TransactionPatch{Status: &pending}, "")
	require.True(t, IsValidation(err))

	reconciled := repository.StatusReconciled
	got, err = e.store.Update(ctx, tx.ID, TransactionPatch{Status: &reconciled}, "auditor")
	require.NoError(t, err)
	require.True(t, got.IsReconciled)
	require.NotNil(t, got.ReconciledBy)
	require.Equal(t, "auditor", *got.ReconciledBy)
	require.NotNil(t, got.ReconciledAt)

	// reconciled is terminal
	_, err = e.store.SoftDelete(ctx, tx.ID, "")
	require.True(t, IsValidation(err))

	_, err = e.store.Update(ctx, "missing", TransactionPatch{Status: &cleared}, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDelete(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	tx := mustCreate(t, ctx, e, txInput("Gym", -30, day(2024, 3, 1)))
	ok, err := e.store.SoftDelete(ctx, tx.ID, "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := e.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCancelled, got.Status)

	ok, err = e.store.SoftDelete(ctx, tx.ID, "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.store.SoftDelete(ctx, "missing", "user-1")
	require.NoError(t, err)
	require.False(t, ok)

	history, err := e.store.History(ctx, tx.ID)
	require.NoError(t, err)
	deletes := 0
	for _, h := range history {
		if h.Action == repository.ActionDelete {
			deletes++
		}
	}
	require.Positive(t, deletes)

	name := "Gym membership"
	_, err = e.store.Update(ctx, tx.ID, TransactionPatch{Name: &name}, "")
	require.True(t, IsValidation(err))

	listed, err := e.store.List(ctx, repository.TransactionFilters{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Empty(t, listed)
	listed, err = e.store.List(ctx, repository.TransactionFilters{AccountID: "acct-1", IncludeCancelled: true})
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestBulkUpdate(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	a := mustCreate(t, ctx, e, txInput("Lunch", -12, day(2024, 3, 1)))
	b := mustCreate(t, ctx, e, txInput("Dinner", -40, day(2024, 3, 2)))
	notes := "team outing"

	res, err := e.store.BulkUpdate(ctx, []string{a.ID, "missing", b.ID}, TransactionPatch{Notes: &notes}, "user-1")
	require.NoError(t, err)
	require.Len(t, res.Updated, 2)
	require.Len(t, res.Failed, 1)
	require.True(t, errors.Is(res.Failed["missing"], ErrNotFound))
	for _, tx := range res.Updated {
		require.NotNil(t, tx.Notes)
		require.Equal(t, notes, *tx.Notes)
	}

	ids := make([]string, 101)
	for i := range ids {
		ids[i] = a.ID
	}
	_, err = e.store.BulkUpdate(ctx, ids, TransactionPatch{Notes: &notes}, "user-1")
	require.True(t, IsValidation(err))
}

func TestCategoryUsageFollowsTransactions(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	owner := repository.UserOwner("user-1")
	food := mustCategory(t, ctx, e, owner, "Food", nil)
	fun := mustCategory(t, ctx, e, owner, "Fun", nil)

	in := txInput("Pizza", -20, day(2024, 3, 1))
	in.UserCategoryID = &food.ID
	tx := mustCreate(t, ctx, e, in)

	got, err := e.categories.Get(ctx, food.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.TransactionCount)
	require.InDelta(t, -20, got.TotalAmount, 1e-9)

	_, err = e.store.Update(ctx, tx.ID, TransactionPatch{UserCategoryID: &fun.ID}, "")
	require.NoError(t, err)
	got, err = e.categories.Get(ctx, food.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.TransactionCount)
	got, err = e.categories.Get(ctx, fun.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.TransactionCount)

	_, err = e.store.SoftDelete(ctx, tx.ID, "")
	require.NoError(t, err)
	got, err = e.categories.Get(ctx, fun.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.TransactionCount)
	require.InDelta(t, 0, got.TotalAmount, 1e-9)
}
