// Package domain holds the entities and error taxonomy shared across
// the service. Every failure in this codebase is a returned value from
// one of these families; nothing aborts the process.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing robots, users, and missing structural
	// slots inside a recording. Callers decide whether it is a no-op
	// or a user-facing failure.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a concurrent edit race: the robot row changed
	// between load and save. Recoverable by reload-and-retry.
	ErrConflict = errors.New("conflict: robot was modified concurrently")
)

// ValidationError identifies the failing field so the caller can report
// it precisely. It is always recoverable and never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
