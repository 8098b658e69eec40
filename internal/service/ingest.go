package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/ledger/internal/database/repository"
	"github.com/jask/ledger/internal/logger"
)

// ImportOptions identifies where imported rows belong.
type ImportOptions struct {
	AccountID     string
	InstitutionID string
	UserID        string

	// Owner selects the rule set used to categorize each row. A zero owner
	// skips categorization.
	Owner repository.Owner

	// Location is used for timestamp columns; nil means UTC.
	Location *time.Location
	Actor    string
}

type IngestResult struct {
	Imported    int
	Duplicates  int
	Categorized int
	Errors      []error
}

// IngestService loads statement exports through the transaction store.
type IngestService struct {
	Store *TransactionStore
	Rules *RuleEngine
}

// CSV columns: date, name, amount, merchant, description, external_id.
// merchant, description and external_id may be empty or missing. A first row
// whose date column reads "date" is treated as a header.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, opts ImportOptions) (IngestResult, error) {
	if s.Store == nil {
		return IngestResult{}, errors.New("ingest: no transaction store")
	}
	log := logger.FromContext(ctx)
	res := IngestResult{}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		if len(rec) < 3 {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: expected at least 3 columns (date, name, amount)", line))
			continue
		}
		date, err := parseLocalDate(rec[0], opts.Location)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d date: %w", line, err))
			continue
		}
		amount, err := parseAmount(rec[2])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d amount: %w", line, err))
			continue
		}

		in := CreateTransactionInput{
			AccountID:       opts.AccountID,
			InstitutionID:   opts.InstitutionID,
			UserID:          opts.UserID,
			Amount:          amount,
			TransactionDate: date,
			Name:            rec[1],
			MerchantName:    column(rec, 3),
			Description:     column(rec, 4),
			ExternalID:      column(rec, 5),
			Source:          repository.SourceCSVImport,
			Actor:           opts.Actor,
		}
		t, categorized, err := s.importRow(ctx, in, opts.Owner)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		res.Imported++
		if t.DuplicateOfID != nil {
			res.Duplicates++
		}
		if categorized {
			res.Categorized++
		}
	}
	log.Info().
		Str("account_id", opts.AccountID).
		Int("imported", res.Imported).
		Int("duplicates", res.Duplicates).
		Int("categorized", res.Categorized).
		Int("errors", len(res.Errors)).
		Msg("csv import complete")
	return res, nil
}

// importRow stores one row and runs the owner's rules over it in a single
// database transaction.
func (s *IngestService) importRow(ctx context.Context, in CreateTransactionInput, owner repository.Owner) (repository.Transaction, bool, error) {
	t, err := s.Store.newTransaction(in)
	if err != nil {
		return t, false, err
	}
	categorized := false
	err = inTx(ctx, s.Store.DB, func(q queries) error {
		var err error
		t, err = s.Store.create(ctx, q, t, in.Actor)
		if err != nil {
			return err
		}
		if s.Rules == nil || owner.IsZero() {
			return nil
		}
		applied, err := s.Rules.apply(ctx, q, t.ID, owner)
		if err != nil {
			return err
		}
		categorized = applied != nil
		return nil
	})
	return t, categorized, err
}

func column(rec []string, i int) *string {
	if i >= len(rec) {
		return nil
	}
	return optional(rec[i])
}

// parseAmount accepts an optional sign, a leading currency symbol and
// thousands separators. Parenthesised values are negative.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2).InexactFloat64(), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2/01/2006", // day/month/year, single-digit day allowed
}

// parseLocalDate returns the calendar day of s. Full timestamps are read in
// loc first so the day matches what the statement showed.
func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
