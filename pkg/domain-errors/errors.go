// Package domainerrors provides coded errors for the governance core.
//
// Services return these so transports can map failures to responses and tests
// can assert on failure class without string matching. Stores return sentinel
// errors (pkg/platform/sentinel); services translate them into coded errors at
// the boundary. Validation always happens before any write, so a coded error
// implies no state was mutated by the failing transition.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeUnauthorized: the caller is not authenticated for the operation.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: the caller is authenticated but lacks the capability or
	// the voting power the operation requires.
	CodeForbidden Code = "forbidden"
	// CodeBadRequest: malformed or out-of-policy input (bad voting window,
	// severity out of range, zero amount, insufficient stake, short lock).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput: a domain primitive failed to parse at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound: account, proposal, dispute, or delegation does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: a uniqueness rule rejected the write (already registered,
	// identity hash taken, already voted, open dispute exists, delegation
	// still locked).
	CodeConflict Code = "conflict"
	// CodeInvalidState: the entity exists but is in the wrong lifecycle state
	// (proposal expired or already executed, dispute already resolved,
	// account unverified, shares locked by a delegation).
	CodeInvalidState Code = "invalid_state"
	// CodeInsufficientFunds: the escrow ledger refused a transfer.
	CodeInsufficientFunds Code = "insufficient_funds"
	// CodeInvariantViolation: an internal consistency rule would be broken;
	// indicates a bug, not bad input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal: infrastructure failure (store, cache, publisher).
	CodeInternal Code = "internal"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is; provided so call sites importing this package
// under a named alias do not also need the stdlib errors import.
func Is(err, target error) bool { return errors.Is(err, target) }
