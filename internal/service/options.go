package service

import "github.com/jask/ledger/internal/config"

// Options carries the engine's tunable limits.
type Options struct {
	DuplicateWindowDays int
	ExactThreshold      float64
	SimilarThreshold    float64
	MaxSimilar          int
	Tolerance           float64
	MaxBulkItems        int
	MaxCategoryDepth    int

	// UniqueCategoryPaths makes a second category at an owner's existing path
	// (compared case-insensitively) fail with ErrConflict.
	UniqueCategoryPaths bool
}

// DefaultOptions returns the documented engine constants.
func DefaultOptions() Options {
	return Options{
		DuplicateWindowDays: 3,
		ExactThreshold:      0.9,
		SimilarThreshold:    0.6,
		MaxSimilar:          5,
		Tolerance:           0.01,
		MaxBulkItems:        100,
		MaxCategoryDepth:    50,
	}
}

// OptionsFromConfig overlays configured values on the defaults; zero values
// keep the default.
func OptionsFromConfig(c config.Config) Options {
	o := DefaultOptions()
	if c.Duplicates.WindowDays > 0 {
		o.DuplicateWindowDays = c.Duplicates.WindowDays
	}
	if c.Duplicates.ExactThreshold > 0 {
		o.ExactThreshold = c.Duplicates.ExactThreshold
	}
	if c.Duplicates.SimilarThreshold > 0 {
		o.SimilarThreshold = c.Duplicates.SimilarThreshold
	}
	if c.Duplicates.MaxSimilar > 0 {
		o.MaxSimilar = c.Duplicates.MaxSimilar
	}
	if c.Reconciliation.Tolerance > 0 {
		o.Tolerance = c.Reconciliation.Tolerance
	}
	if c.Bulk.MaxItems > 0 {
		o.MaxBulkItems = c.Bulk.MaxItems
	}
	if c.Categories.MaxDepth > 0 {
		o.MaxCategoryDepth = c.Categories.MaxDepth
	}
	o.UniqueCategoryPaths = c.Categories.UniquePaths
	return o
}
