package service

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced transaction, category or rule
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when UniqueCategoryPaths is set and a category
// would share its path with another category of the same owner.
var ErrConflict = errors.New("conflict")

// ValidationError reports malformed input the caller must correct.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
