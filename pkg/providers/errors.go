package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a provider call failure for retry and circuit-breaker
// accounting. Adapters assign the kind; the routing engine only switches on it.
type ErrorKind int

const (
	// KindRetryable marks transient, provider-attributable failures
	// (connection errors, 5xx responses, throttling). Eligible for retry
	// and counted by the circuit breaker.
	KindRetryable ErrorKind = iota

	// KindNonRetryable marks client-attributable failures (bad request,
	// auth). Never retried, never counted toward opening a breaker, and
	// never a fail-over trigger: the request is presumed invalid regardless
	// of backend.
	KindNonRetryable

	// KindTimeout marks a per-attempt timeout. Retryable and counted by the
	// breaker as a provider-attributable failure.
	KindTimeout
)

// String returns the kind as a stable label for logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindNonRetryable:
		return "non_retryable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CallError is the pre-classified error returned by provider adapters.
type CallError struct {
	// Provider is the name of the provider that failed.
	Provider string

	// Kind is the failure classification.
	Kind ErrorKind

	// StatusCode is the HTTP status code, if applicable (0 otherwise).
	StatusCode int

	// Message describes the failure.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q call failed (%s, status %d): %s",
			e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q call failed (%s): %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// NewRetryableError builds a retryable CallError.
func NewRetryableError(provider, message string, cause error) *CallError {
	return &CallError{Provider: provider, Kind: KindRetryable, Message: message, Cause: cause}
}

// NewNonRetryableError builds a non-retryable CallError.
func NewNonRetryableError(provider, message string, cause error) *CallError {
	return &CallError{Provider: provider, Kind: KindNonRetryable, Message: message, Cause: cause}
}

// NewTimeoutError builds a timeout CallError.
func NewTimeoutError(provider, message string, cause error) *CallError {
	return &CallError{Provider: provider, Kind: KindTimeout, Message: message, Cause: cause}
}

// ClassifyError maps an arbitrary error from an adapter into an ErrorKind.
//
// Pre-classified CallErrors keep their kind. Context deadline expiry maps to
// KindTimeout. Anything else is treated as a retryable provider failure, which
// is the safe default for unclassified transport errors.
func ClassifyError(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindRetryable
}

// IsProviderAttributable reports whether a failure of the given kind should
// count toward opening the provider's circuit breaker. Client-attributable
// failures must never move a breaker toward Open.
func IsProviderAttributable(kind ErrorKind) bool {
	return kind != KindNonRetryable
}
