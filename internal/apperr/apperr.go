// Package apperr defines the error kinds shared by the scheduling packages.
// Concrete errors wrap one of these kinds so callers can branch on the kind
// with errors.Is without knowing every specific sentinel.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrForbidden         = errors.New("forbidden")
)

// New returns a sentinel error of the given kind.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Wrap attaches a kind to err, keeping err in the chain.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind reports which kind err belongs to, or nil for infrastructure errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrIllegalTransition, ErrForbidden} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
