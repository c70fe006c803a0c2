package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so retry and fallback policy stays auditable
// instead of being dispatched on opaque error values.
type ErrorKind int

const (
	// KindValidation marks blank or malformed input, rejected before any
	// external call and never retried.
	KindValidation ErrorKind = iota
	// KindTransient marks provider failures that were retried with backoff
	// and still failed.
	KindTransient
	// KindRateLimited marks calls refused by the request-rate cap.
	KindRateLimited
	// KindCircuitOpen marks calls short-circuited by an open breaker.
	KindCircuitOpen
	// KindFatal marks ingestion failures past the last-resort fallback.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindCircuitOpen:
		return "circuit_open"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// ErrNotFound is returned by store lookups that match no row.
var ErrNotFound = errors.New("not found")

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, defaulting to KindTransient for plain
// errors so unknown failures stay retryable rather than fatal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}
