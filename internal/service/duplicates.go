package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jask/ledger/internal/database"
	"github.com/jask/ledger/internal/database/repository"
)

const (
	confidenceExternalID = 1.0
	confidenceExact      = 0.95
	confidenceSimilar    = 0.70

	// sweepEditRatio flags pairs whose normalised names are within 40% edits.
	sweepEditRatio = 0.4
)

// DuplicateCheck describes a candidate transaction before it is stored.
type DuplicateCheck struct {
	AccountID    string
	Amount       float64
	Date         time.Time
	Name         string
	MerchantName *string
	Source       repository.Source
	ExternalID   *string
}

// SimilarTransaction is a stored transaction that resembles the candidate.
type SimilarTransaction struct {
	Transaction repository.Transaction
	Score       float64
}

// DuplicateResult is advisory: duplicates are flagged, never rejected.
type DuplicateResult struct {
	IsDuplicate   bool
	DuplicateOfID *string
	Confidence    float64
	Similar       []SimilarTransaction
}

// DuplicatePair is a sweep finding between two stored transactions.
type DuplicatePair struct {
	A, B      repository.Transaction
	Score     float64
	EditRatio float64
}

// DuplicateDetector searches the duplicate window for matching transactions.
// It only reads.
type DuplicateDetector struct {
	DB      *sql.DB
	Options Options
}

// Check runs detection against the committed ledger.
func (d *DuplicateDetector) Check(ctx context.Context, in DuplicateCheck) (DuplicateResult, error) {
	return d.check(ctx, repository.NewTransactionRepo(d.DB), in)
}

func (d *DuplicateDetector) check(ctx context.Context, txs *repository.TransactionRepo, in DuplicateCheck) (DuplicateResult, error) {
	res := DuplicateResult{}
	opts := d.opts()

	var exact, similar []SimilarTransaction
	seen := map[string]bool{}

	if in.ExternalID != nil && *in.ExternalID != "" {
		prior, err := txs.ByExternalID(ctx, in.Source, *in.ExternalID)
		if err != nil {
			return res, fmt.Errorf("duplicates: external id lookup: %w", err)
		}
		if prior != nil {
			exact = append(exact, SimilarTransaction{Transaction: *prior, Score: 1})
			seen[prior.ID] = true
		}
	}
	externalHit := len(exact) > 0

	day := database.Day(in.Date)
	window := opts.DuplicateWindowDays
	candidates, err := txs.DuplicateCandidates(ctx, in.AccountID, in.Amount, day.AddDate(0, 0, -window), day.AddDate(0, 0, window))
	if err != nil {
		return res, fmt.Errorf("duplicates: candidate query: %w", err)
	}
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		score := NameSimilarity(in.Name, c.Name)
		if in.MerchantName != nil && c.MerchantName != nil {
			if m := NameSimilarity(*in.MerchantName, *c.MerchantName); m > score {
				score = m
			}
		}
		switch {
		case score > opts.ExactThreshold:
			exact = append(exact, SimilarTransaction{Transaction: c, Score: score})
		case score > opts.SimilarThreshold:
			similar = append(similar, SimilarTransaction{Transaction: c, Score: score})
		}
	}

	switch {
	case externalHit:
		res.Confidence = confidenceExternalID
	case len(exact) > 0:
		res.Confidence = confidenceExact
	case len(similar) > 0:
		res.Confidence = confidenceSimilar
	}
	if len(exact) > 0 {
		res.IsDuplicate = true
		id := exact[0].Transaction.ID
		res.DuplicateOfID = &id
	}

	combined := append(exact, similar...)
	if len(combined) > opts.MaxSimilar {
		combined = combined[:opts.MaxSimilar]
	}
	res.Similar = combined
	return res, nil
}

// Sweep scans an account's stored transactions for likely duplicate pairs.
// A pair needs equal amounts, dates inside the window, and either a word
// score above the similar threshold or a small edit distance.
func (d *DuplicateDetector) Sweep(ctx context.Context, accountID string) ([]DuplicatePair, error) {
	opts := d.opts()
	txs, err := repository.NewTransactionRepo(d.DB).List(ctx, repository.TransactionFilters{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("duplicates: sweep list: %w", err)
	}

	byAmount := map[float64][]repository.Transaction{}
	for _, t := range txs {
		byAmount[t.Amount] = append(byAmount[t.Amount], t)
	}

	window := time.Duration(opts.DuplicateWindowDays) * 24 * time.Hour
	var out []DuplicatePair
	for _, group := range byAmount {
		sort.Slice(group, func(i, j int) bool {
			if group[i].TransactionDate.Equal(group[j].TransactionDate) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].TransactionDate.Before(group[j].TransactionDate)
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if b.TransactionDate.Sub(a.TransactionDate) > window {
					break
				}
				score := NameSimilarity(a.Name, b.Name)
				ratio := editRatio(a.Name, b.Name)
				if score > opts.SimilarThreshold || ratio < sweepEditRatio {
					out = append(out, DuplicatePair{A: a, B: b, Score: score, EditRatio: ratio})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].A.TransactionDate.Equal(out[j].A.TransactionDate) {
			return out[i].A.TransactionDate.Before(out[j].A.TransactionDate)
		}
		return out[i].A.ID < out[j].A.ID
	})
	return out, nil
}

func (d *DuplicateDetector) opts() Options {
	if d.Options == (Options{}) {
		return DefaultOptions()
	}
	return d.Options
}
