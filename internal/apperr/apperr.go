// Package apperr defines the failure kinds shared by the domain packages.
package apperr

import (
	"errors"
	"fmt"
)

// Failure kinds. Callers compare with errors.Is.
var (
	ErrAccessDenied     = errors.New("access denied")
	ErrInsufficientRole = errors.New("insufficient role")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrRatesUnavailable = errors.New("rates unavailable")
	// ErrConflict reports a lost compare-and-swap against a concurrent writer.
	ErrConflict = errors.New("conflict")
)

var kinds = []error{
	ErrAccessDenied,
	ErrInsufficientRole,
	ErrNotFound,
	ErrDuplicate,
	ErrInvalidOperation,
	ErrRatesUnavailable,
	ErrConflict,
}

// Error is a failure of a known kind with a message fit for the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns an *Error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind wrapped by err, or nil when err is not one.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// MessageOf returns the caller-facing message of err.
// Errors without a kind get a generic message so internals are not leaked.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal error"
}
