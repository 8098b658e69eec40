package service

import (
	"time"

	"github.com/jask/ledger/internal/database/repository"
)

var statusTransitions = map[repository.Status][]repository.Status{
	repository.StatusPending: {repository.StatusCleared, repository.StatusCancelled, repository.StatusFailed},
	repository.StatusCleared: {repository.StatusReconciled, repository.StatusCancelled},
}

// CanTransition reports whether a transaction may move from one status to
// another. Staying put is always allowed.
func CanTransition(from, to repository.Status) bool {
	if from == to {
		return true
	}
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// setStatus moves t to status and keeps the boolean sub-states in line.
func setStatus(t *repository.Transaction, to repository.Status, actor string, at time.Time) error {
	if !to.Valid() {
		return invalid("status", "unknown status %q", to)
	}
	if !CanTransition(t.Status, to) {
		return invalid("status", "cannot move from %s to %s", t.Status, to)
	}
	t.Status = to
	t.IsPending = to == repository.StatusPending
	if to == repository.StatusReconciled && !t.IsReconciled {
		t.IsReconciled = true
		stamp := at
		t.ReconciledAt = &stamp
		by := actor
		t.ReconciledBy = &by
	}
	return nil
}
