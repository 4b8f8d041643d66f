package engine

import (
	"errors"
	"fmt"
)

// RunError represents a failure detected during one orchestrator run.
//
// Run errors never cross check boundaries: a failing check produces a
// warning outcome carrying its RunError, and sibling checks proceed
// untouched. Only storage failures propagate out of Handle.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Path identifies the affected file.
	Path string

	// Check identifies the check involved, when there is one.
	Check string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeCheckTimeout indicates a check exceeded its per-check timeout.
	ErrCodeCheckTimeout RunErrorCode = "CHECK_TIMEOUT"

	// ErrCodeCheckFailed indicates a check returned an error or a
	// malformed outcome.
	ErrCodeCheckFailed RunErrorCode = "CHECK_FAILED"

	// ErrCodeCheckPanic indicates a check panicked; the panic was
	// recovered at the check boundary.
	ErrCodeCheckPanic RunErrorCode = "CHECK_PANIC"

	// ErrCodeGuardRefused indicates the write guard refused a proposed fix.
	ErrCodeGuardRefused RunErrorCode = "GUARD_REFUSED"

	// ErrCodeFixWrite indicates a fix could not be written to disk.
	ErrCodeFixWrite RunErrorCode = "FIX_WRITE"

	// ErrCodeStoreFailed indicates the audit record could not be appended.
	ErrCodeStoreFailed RunErrorCode = "STORE_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	switch {
	case e.Check != "" && e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s, check=%s)", e.Code, e.Message, e.Path, e.Check)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsRunError extracts a RunError with the given code from err's chain.
func IsRunError(err error, code RunErrorCode) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == code
}
