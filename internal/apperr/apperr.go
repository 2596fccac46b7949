// Package apperr defines the error taxonomy shared by all request-handling
// components. Errors carry a machine-readable code so the HTTP layer can map
// them to statuses without string matching, and so security-sensitive codes
// can be collapsed into generic responses.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes. All are terminal for the request; none are retried internally.
const (
	// EUnauthorized covers both a missing and an unknown credential. The two
	// cases share one code so responses cannot be used to probe which
	// credentials (and therefore which tenants) exist.
	EUnauthorized = "unauthorized"
	// EInvalid means the request itself is malformed (empty query).
	EInvalid = "invalid"
	// EForbiddenTenant means the tenant identifier failed storage-boundary
	// validation (bad alphabet, traversal sequence, containment escape).
	EForbiddenTenant = "forbidden tenant"
	// EUnavailable means the tenant's corpus partition could not be read.
	// Deliberately generic: it must not reveal whether the partition exists.
	EUnavailable = "unavailable"
	// EInternal is an invariant violation (e.g. a source outside the loaded
	// corpus). Never carries detail to the caller.
	EInternal = "internal error"
)

// Error is a coded error. Code targets automated handling (HTTP status
// mapping); Msg is for operators; Err chains the underlying cause.
type Error struct {
	Code string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return fmt.Sprintf("<%s>", e.Code)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error with a message.
func New(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap returns a coded error wrapping err.
func Wrap(code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// ErrorCode returns the code of err, walking the wrap chain. A nil error has
// no code (empty string); an uncoded error reports EInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EInternal
}

// ErrorMessage returns the operator-facing message of err, or the plain
// Error() string for uncoded errors.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
