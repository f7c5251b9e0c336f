package router

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrModelNotFound is returned when no registered provider serves the
	// requested model.
	ErrModelNotFound = errors.New("model not found")

	// ErrNoHealthyProviders is returned when every candidate provider is
	// circuit-open or unreachable.
	ErrNoHealthyProviders = errors.New("no healthy providers available")

	// ErrAllProvidersFailed is returned when every candidate was attempted
	// and failed.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrRequestTimeout is returned when the overall request deadline
	// expires. A deadline breach is terminal, never a fail-over trigger.
	ErrRequestTimeout = errors.New("request deadline exceeded")
)

// ModelNotFoundError is returned when no provider serves the requested model.
type ModelNotFoundError struct {
	// Model is the requested model.
	Model string

	// AvailableModels lists models served by at least one provider.
	AvailableModels []string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	if len(e.AvailableModels) == 0 {
		return fmt.Sprintf("model %q not served by any provider", e.Model)
	}
	return fmt.Sprintf("model %q not served by any provider (available models: %s)",
		e.Model, strings.Join(e.AvailableModels, ", "))
}

// Is implements error matching for errors.Is().
func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

// NoHealthyProvidersError is returned when all candidates were circuit-open
// or unreachable.
type NoHealthyProvidersError struct {
	// Model is the requested model.
	Model string

	// AttemptedProviders names every provider considered or attempted.
	AttemptedProviders []string
}

// Error implements the error interface.
func (e *NoHealthyProvidersError) Error() string {
	return fmt.Sprintf("no healthy providers for model %q (attempted: %s)",
		e.Model, strings.Join(e.AttemptedProviders, ", "))
}

// Is implements error matching for errors.Is().
func (e *NoHealthyProvidersError) Is(target error) bool {
	return target == ErrNoHealthyProviders
}

// AllProvidersFailedError is returned when every candidate was attempted and
// the last failure was a provider error rather than a circuit denial.
type AllProvidersFailedError struct {
	// Model is the requested model.
	Model string

	// AttemptedProviders names every provider attempted, in order.
	AttemptedProviders []string

	// LastError is the error from the final attempted provider.
	LastError error
}

// Error implements the error interface.
func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for model %q (attempted: %s, last error: %v)",
		e.Model, strings.Join(e.AttemptedProviders, ", "), e.LastError)
}

// Is implements error matching for errors.Is().
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *AllProvidersFailedError) Unwrap() error {
	return e.LastError
}

// TimeoutError is returned when the overall request deadline expires.
type TimeoutError struct {
	// Model is the requested model.
	Model string

	// AttemptedProviders names every provider attempted before expiry.
	AttemptedProviders []string

	// Deadline is the overall budget that was exceeded.
	Deadline time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if len(e.AttemptedProviders) == 0 {
		return fmt.Sprintf("request for model %q exceeded its %s deadline", e.Model, e.Deadline)
	}
	return fmt.Sprintf("request for model %q exceeded its %s deadline (attempted: %s)",
		e.Model, e.Deadline, strings.Join(e.AttemptedProviders, ", "))
}

// Is implements error matching for errors.Is().
func (e *TimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// ProviderRequestError is returned when a provider rejects the request with a
// non-retryable, client-attributable error. It is surfaced immediately with
// no fail-over: the request is presumed invalid regardless of backend.
type ProviderRequestError struct {
	// Provider is the provider that rejected the request.
	Provider string

	// Err is the classified call error.
	Err error
}

// Error implements the error interface.
func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("provider %q rejected the request: %v", e.Provider, e.Err)
}

// Unwrap returns the wrapped error for error chain traversal.
func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}
