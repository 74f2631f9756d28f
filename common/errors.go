// Package common error taxonomy. Every user-visible failure in the platform
// carries one of the stable kinds below plus a human-readable message;
// internal trace data is logged, never returned.
package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the stable classification of a platform error.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindSourceRateLimit   ErrorKind = "source_rate_limit_exceeded"
	KindProviderTransient ErrorKind = "provider_transient"
	KindProviderPermanent ErrorKind = "provider_permanent"
	KindSyncFailure       ErrorKind = "sync_failure"
	KindCancelled         ErrorKind = "cancelled"
)

// Error is the platform error type. It wraps an optional cause so callers can
// use errors.Is / errors.As across component boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a platform error with the given kind and message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a platform error wrapping a cause
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of err, or an empty kind for non-platform errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimitExceeded
	}
	var srl *SourceRateLimitError
	if errors.As(err, &srl) {
		return KindSourceRateLimit
	}
	return ""
}

// IsKind reports whether KindOf(err) is the given kind. Only the first
// platform error in err's chain is consulted; kinds of errors it wraps are not.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err should be retried with backoff. Only
// transient provider failures qualify; everything else either fails the
// operation or is handled by a dedicated code path (rate limits pace, they do
// not retry blindly).
func IsRetryable(err error) bool {
	return IsKind(err, KindProviderTransient)
}

// RateLimitError is returned when a client-side rate limit is exceeded.
// It carries enough data for the caller to build a well-formed 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: limit=%d remaining=%d retry_after=%s",
		e.Limit, e.Remaining, e.RetryAfter)
}

// SourceRateLimitError is raised when an internal source-side limit trips.
// The HTTP client wrapper converts it into a synthetic 429 response so source
// adapters treat internal and upstream rate limits identically.
type SourceRateLimitError struct {
	SourceShortName string
	RetryAfter      time.Duration
	Limit           int
}

// Error implements the error interface
func (e *SourceRateLimitError) Error() string {
	return fmt.Sprintf("source rate limit exceeded for %s: limit=%d retry_after=%s",
		e.SourceShortName, e.Limit, e.RetryAfter)
}
