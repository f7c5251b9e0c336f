package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
)

// Policy bounds the retry behavior for calls against a single provider.
// Immutable; resolved per provider or globally at configuration load.
type Policy struct {
	// MaxAttempts is the maximum number of calls to one provider per
	// request. Fail-over across providers is a separate mechanism and is
	// not bounded by this.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// JitterFraction randomizes each delay by +/- this fraction (0..1).
	JitterFraction float64

	// AttemptTimeout bounds each individual provider call. Zero disables
	// the per-attempt timeout (the overall request deadline still applies).
	AttemptTimeout time.Duration
}

// DefaultPolicy returns conservative retry settings for external LLM APIs.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		AttemptTimeout: 30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		p.JitterFraction = d.JitterFraction
	}
	return p
}

// Delay returns the backoff delay applied before retry attempt+1, where
// attempt counts from 1. The delay grows as base*multiplier^(attempt-1),
// capped at MaxDelay, then jittered by +/- JitterFraction.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		// Uniform in [1-j, 1+j].
		d *= 1 + p.JitterFraction*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// ErrCircuitOpen is returned when the provider's breaker denies the call,
// either up front or mid-sequence after opening concurrently. It is reported
// distinctly from retries exhausted so the router fails over immediately.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitOpenError wraps ErrCircuitOpen with the denying provider.
type CircuitOpenError struct {
	// Provider is the provider whose breaker denied the call.
	Provider string

	// Attempts is the number of attempts consumed before the denial.
	Attempts int
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("provider %q circuit breaker open (after %d attempts)", e.Provider, e.Attempts)
}

// Is implements error matching for errors.Is().
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// ErrRetriesExhausted is returned when every permitted attempt against the
// provider failed with a retryable error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError wraps ErrRetriesExhausted with attempt detail.
type ExhaustedError struct {
	// Provider is the provider whose attempts were exhausted.
	Provider string

	// Attempts is the number of attempts made.
	Attempts int

	// LastErr is the error from the final attempt.
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("provider %q retries exhausted after %d attempts: %v",
		e.Provider, e.Attempts, e.LastErr)
}

// Is implements error matching for errors.Is().
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Unwrap returns the last attempt error for error chain traversal.
func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Operation is a single provider call. The context carries the per-attempt
// timeout; implementations must return promptly on cancellation.
type Operation func(ctx context.Context) (*providers.Response, error)

// AttemptFunc observes each completed attempt, successful or not. Used by the
// router to emit telemetry; must be fast and non-blocking.
type AttemptFunc func(provider string, attempt int, outcome providers.Outcome, stateAfter breaker.State)

// Result carries the successful response and the attempt count for telemetry.
type Result struct {
	// Response is the successful provider response.
	Response *providers.Response

	// Attempts is the number of calls made against the provider.
	Attempts int
}

// Executor wraps a single provider call with bounded retries, exponential
// backoff, and circuit breaker consultation.
type Executor struct {
	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt AttemptFunc
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSleep injects the backoff sleep, used by tests to avoid real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = sleep }
}

// WithAttemptFunc registers a per-attempt observer.
func WithAttemptFunc(fn AttemptFunc) ExecutorOption {
	return func(e *Executor) { e.onAttempt = fn }
}

// NewExecutor creates a retry executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{sleep: sleepCtx}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs op against the named provider under the policy.
//
// For each attempt the breaker is consulted first: a denial aborts with
// CircuitOpenError without consuming an attempt. Permitted attempts run under
// the per-attempt timeout; the outcome is classified and fed back to the
// breaker. Retryable failures sleep the backoff delay and retry while
// attempts remain; non-retryable failures abort immediately and are returned
// verbatim. Context expiry at any suspension point aborts with the context
// error.
func (e *Executor) Execute(ctx context.Context, provider string, br *breaker.Breaker, op Operation, policy Policy) (*Result, error) {
	policy = policy.withDefaults()

	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !br.Permit() {
			return nil, &CircuitOpenError{Provider: provider, Attempts: attempts}
		}

		resp, outcome := e.attempt(ctx, br, op, policy)
		attempts = attempt
		if e.onAttempt != nil {
			e.onAttempt(provider, attempt, outcome, br.State())
		}

		if outcome.Success {
			return &Result{Response: resp, Attempts: attempts}, nil
		}
		lastErr = outcome.Err

		// The overall deadline expiring mid-attempt is terminal, never a
		// retry or fail-over trigger.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if outcome.Kind == providers.KindNonRetryable {
			return nil, lastErr
		}

		if attempt < policy.MaxAttempts {
			delay := policy.Delay(attempt)
			slog.Debug("retrying provider call",
				"provider", provider,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
			)
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, &ExhaustedError{Provider: provider, Attempts: attempts, LastErr: lastErr}
}

// attempt runs a single permitted call and records its outcome on the breaker.
// The in-flight counter and the HalfOpen probe slot are released on every exit
// path.
func (e *Executor) attempt(ctx context.Context, br *breaker.Breaker, op Operation, policy Policy) (*providers.Response, providers.Outcome) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if policy.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		defer cancel()
	}

	br.Acquire()
	defer br.Release()

	start := time.Now()
	resp, err := op(attemptCtx)
	latency := time.Since(start)

	if err == nil {
		tokens := 0
		if resp != nil {
			tokens = resp.TokensUsed
			resp.Latency = latency
		}
		outcome := providers.SuccessOutcome(latency, tokens)
		br.RecordOutcome(breaker.VerdictSuccess, latency)
		return resp, outcome
	}

	outcome := providers.FailureOutcome(err, latency)

	// A caller cancellation (overall deadline) says nothing about the
	// provider; release the probe without moving the breaker. A per-attempt
	// timeout with the overall deadline intact is provider-attributable.
	if ctx.Err() != nil {
		br.RecordOutcome(breaker.VerdictIgnore, latency)
		return nil, outcome
	}

	if providers.IsProviderAttributable(outcome.Kind) {
		br.RecordOutcome(breaker.VerdictFailure, latency)
	} else {
		br.RecordOutcome(breaker.VerdictIgnore, latency)
	}
	return nil, outcome
}

// sleepCtx blocks for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
