// Package failure classifies the errors surfaced by synchronization, caching
// and optimization so callers can pick a recovery policy without string
// matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the error category reported to callers.
type Kind int

const (
	// KindTransport means the remote could not be reached or answered with a
	// non-success status.
	KindTransport Kind = iota + 1
	// KindMalformedPage means a page could not be decoded into records.
	KindMalformedPage
	// KindCacheUnavailable means a persisted series was missing or unreadable.
	KindCacheUnavailable
	// KindInsufficientHorizon means the tariff does not cover a full window.
	KindInsufficientHorizon
)

// String returns the snake_case name used in API payloads and metrics.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_failure"
	case KindMalformedPage:
		return "malformed_page"
	case KindCacheUnavailable:
		return "cache_unavailable"
	case KindInsufficientHorizon:
		return "insufficient_horizon"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the whole call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindMalformedPage
}

// New wraps err with the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport is shorthand for New(KindTransport, ...).
func Transport(op string, err error) *Error { return New(KindTransport, op, err) }

// Malformed is shorthand for New(KindMalformedPage, ...).
func Malformed(op string, err error) *Error { return New(KindMalformedPage, op, err) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether err is classified as retryable.
func Retryable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Retryable()
}
