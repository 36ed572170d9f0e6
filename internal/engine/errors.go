package engine

import (
	"errors"
	"fmt"
)

// Error represents a refusal detected by the engine itself, as opposed to a
// storage error surfaced from SQLite (those are returned wrapped but
// otherwise untouched).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the affected table, if any.
	Table string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidIdentifier indicates a table or column name outside [A-Za-z0-9_].
	ErrCodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"

	// ErrCodeIncomparable indicates two conflicting rows whose timestamps cannot be ordered.
	ErrCodeIncomparable ErrorCode = "INCOMPARABLE_TIMESTAMPS"

	// ErrCodeMissingID indicates a row without an id value.
	ErrCodeMissingID ErrorCode = "MISSING_ID"

	// ErrCodeClosed indicates use of an engine after Close.
	ErrCodeClosed ErrorCode = "ENGINE_CLOSED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Table != "" {
		msg = fmt.Sprintf("%s (table=%s)", msg, e.Table)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalidIdentifier returns true if err is an invalid identifier error.
// Uses errors.As to handle wrapped errors.
func IsInvalidIdentifier(err error) bool {
	return hasCode(err, ErrCodeInvalidIdentifier)
}

// IsIncomparable returns true if err is an incomparable timestamp error.
// Uses errors.As to handle wrapped errors.
func IsIncomparable(err error) bool {
	return hasCode(err, ErrCodeIncomparable)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newIdentifierError(kind, name string) *Error {
	return &Error{
		Code:    ErrCodeInvalidIdentifier,
		Message: fmt.Sprintf("invalid %s name %q", kind, name),
	}
}

var errClosed = &Error{Code: ErrCodeClosed, Message: "engine is closed"}
