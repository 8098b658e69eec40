package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledger/internal/database/repository"
)

func seedStatement(t *testing.T, ctx context.Context, e *testEngine) (pending, cleared repository.Transaction) {
	t.Helper()
	pending = mustCreate(t, ctx, e, txInput("Salary", 100, day(2024, 3, 1)))
	in := txInput("Groceries", -30.5, day(2024, 3, 5))
	in.Status = repository.StatusCleared
	cleared = mustCreate(t, ctx, e, in)
	return pending, cleared
}

func TestReconcileBalanced(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	pending, cleared := seedStatement(t, ctx, e)

	rec, err := e.recon.Reconcile(ctx, ReconcileInput{
		AccountID:          "acct-1",
		ReconciliationDate: day(2024, 3, 31),
		StatementBalance:   69.5,
		Actor:              "auditor",
	})
	require.NoError(t, err)
	require.True(t, rec.IsBalanced)
	require.Zero(t, rec.Difference)
	require.InDelta(t, 69.5, rec.CalculatedBalance, 1e-9)
	require.Equal(t, 2, rec.ReconciledCount)
	require.Equal(t, "auditor", rec.PerformedBy)

	for _, id := range []string{pending.ID, cleared.ID} {
		got, err := e.store.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, repository.StatusReconciled, got.Status)
		require.True(t, got.IsReconciled)
		require.False(t, got.IsPending)
		require.Equal(t, "auditor", *got.ReconciledBy)
	}

	history, err := e.store.History(ctx, pending.ID)
	require.NoError(t, err)
	reconcileEntries := 0
	for _, h := range history {
		if h.Action == repository.ActionReconcile {
			reconcileEntries++
		}
	}
	require.Positive(t, reconcileEntries)

	// a second run finds nothing new to mark
	again, err := e.recon.Reconcile(ctx, ReconcileInput{
		AccountID:          "acct-1",
		ReconciliationDate: day(2024, 3, 31),
		StatementBalance:   69.5,
	})
	require.NoError(t, err)
	require.True(t, again.IsBalanced)
	require.Zero(t, again.ReconciledCount)
	require.Equal(t, "system", again.PerformedBy)

	runs, err := e.recon.List(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestReconcileTolerance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		statement float64
		balanced  bool
	}{
		{"within half a cent", 69.505, true},
		{"one cent under", 69.49, false},
		{"two cents over", 69.52, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, ctx := setupEngine(t)
			seedStatement(t, ctx, e)

			rec, err := e.recon.Reconcile(ctx, ReconcileInput{
				AccountID:          "acct-1",
				ReconciliationDate: day(2024, 3, 31),
				StatementBalance:   tc.statement,
			})
			require.NoError(t, err)
			require.Equal(t, tc.balanced, rec.IsBalanced)
			require.InDelta(t, tc.statement-69.5, rec.Difference, 1e-9)
		})
	}
}

func TestReconcileExcludes(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)
	seedStatement(t, ctx, e)

	cancelled := mustCreate(t, ctx, e, txInput("Refunded order", -20, day(2024, 3, 10)))
	_, err := e.store.SoftDelete(ctx, cancelled.ID, "")
	require.NoError(t, err)
	failedIn := txInput("Bounced transfer", 500, day(2024, 3, 11))
	failedIn.Status = repository.StatusFailed
	failed := mustCreate(t, ctx, e, failedIn)
	later := mustCreate(t, ctx, e, txInput("April rent", -900, day(2024, 4, 1)))
	elsewhereIn := txInput("Other account", 1000, day(2024, 3, 2))
	elsewhereIn.AccountID = "acct-2"
	mustCreate(t, ctx, e, elsewhereIn)

	rec, err := e.recon.Reconcile(ctx, ReconcileInput{
		AccountID:          "acct-1",
		ReconciliationDate: day(2024, 3, 31),
		StatementBalance:   69.5,
	})
	require.NoError(t, err)
	require.True(t, rec.IsBalanced)
	require.Equal(t, 2, rec.ReconciledCount)

	for id, want := range map[string]repository.Status{
		cancelled.ID: repository.StatusCancelled,
		failed.ID:    repository.StatusFailed,
		later.ID:     repository.StatusPending,
	} {
		got, err := e.store.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, got.Status)
	}
}

func TestReconcileValidation(t *testing.T) {
	t.Parallel()
	e, ctx := setupEngine(t)

	_, err := e.recon.Reconcile(ctx, ReconcileInput{ReconciliationDate: day(2024, 3, 31)})
	require.True(t, IsValidation(err))
	_, err = e.recon.Reconcile(ctx, ReconcileInput{AccountID: "acct-1"})
	require.True(t, IsValidation(err))

	empty, err := e.recon.Reconcile(ctx, ReconcileInput{AccountID: "acct-1", ReconciliationDate: day(2024, 3, 31)})
	require.NoError(t, err)
	require.True(t, empty.IsBalanced)
	require.Zero(t, empty.ReconciledCount)
}
