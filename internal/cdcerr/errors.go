// Package cdcerr defines the closed set of error kinds a strategy or
// component can fail with (spec §7), so the orchestrator can classify
// a failure without string matching on error text.
package cdcerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from spec §7.
type Kind string

const (
	KindConfigError       Kind = "ConfigError"
	KindSourceUnavailable Kind = "SourceUnavailable"
	KindSchemaError       Kind = "SchemaError"
	KindQueryError        Kind = "QueryError"
	KindStateIOError      Kind = "StateIOError"
	KindSnapshotIOError   Kind = "SnapshotIOError"
	KindUnsupportedMethod Kind = "UnsupportedMethod"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// it with errors.As without depending on message text.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Configf builds a ConfigError with a formatted message.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfigError, Op: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
