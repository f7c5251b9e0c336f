package breaker

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Verdict classifies a call outcome for breaker accounting. The caller
// supplies the classification; the breaker never inspects errors itself.
type Verdict int

const (
	// VerdictSuccess records a successful call.
	VerdictSuccess Verdict = iota

	// VerdictFailure records a provider-attributable failure (timeout,
	// connection error, server-side failure).
	VerdictFailure

	// VerdictIgnore records an outcome that must not move the breaker in
	// either direction (client-attributable failures, cancellations). It
	// still releases the HalfOpen probe slot so recovery never stalls.
	VerdictIgnore
)

// String returns the verdict as a stable label for logs and metrics.
func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailure:
		return "failure"
	case VerdictIgnore:
		return "ignored"
	default:
		return "unknown"
	}
}

// TransitionFunc is notified after a breaker changes state. Callbacks must be
// fast and non-blocking; they run on the caller's goroutine.
type TransitionFunc func(provider string, from, to State, reason string)

// Breaker is a per-provider circuit breaker. It owns the provider's mutable
// health state: circuit state, failure/success streaks, in-flight count, and
// the rolling latency average.
//
// All state transitions are single compare-and-swap operations so exactly one
// transition occurs under concurrent failures, with no observable
// inconsistent intermediate state. There is no background timer: an Open
// breaker moves to HalfOpen lazily, on the first Permit call after the open
// timeout has elapsed.
type Breaker struct {
	provider string
	cfg      Config

	state        atomic.Int32
	failures     atomic.Int64 // consecutive provider-attributable failures
	successes    atomic.Int64 // consecutive successes while HalfOpen
	inFlight     atomic.Int64
	transitionAt atomic.Int64 // unix nanos of the last state transition
	probe        atomic.Bool  // HalfOpen probe claim

	latency latencyEWMA

	now          func() time.Time
	onTransition TransitionFunc
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock injects a clock, used by tests to control the open timeout.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithTransitionFunc registers a state-change callback.
func WithTransitionFunc(fn TransitionFunc) Option {
	return func(b *Breaker) { b.onTransition = fn }
}

// New creates a Closed breaker for the named provider. Zero config fields
// fall back to DefaultConfig.
func New(provider string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		provider: provider,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.transitionAt.Store(b.now().UnixNano())
	return b
}

// Provider returns the name of the provider this breaker guards.
func (b *Breaker) Provider() string {
	return b.provider
}

// Config returns the resolved breaker configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// State returns the current circuit state. An Open breaker whose timeout has
// elapsed still reports Open until the next Permit call transitions it.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Permit reports whether a call to the provider may proceed.
//
//   - Closed: always allowed.
//   - Open: denied, unless the open timeout has elapsed, in which case the
//     breaker transitions to HalfOpen and this caller becomes the probe.
//   - HalfOpen: allowed only if no probe is currently in flight.
//
// A caller granted the HalfOpen probe slot must eventually call RecordOutcome
// (with any verdict) to release it.
func (b *Breaker) Permit() bool {
	switch State(b.state.Load()) {
	case StateClosed:
		return true

	case StateOpen:
		openedAt := time.Unix(0, b.transitionAt.Load())
		if b.now().Sub(openedAt) < b.cfg.OpenTimeout {
			return false
		}
		// The probe slot is claimed before the state flips, so a caller
		// observing the fresh HalfOpen state can never be admitted as a
		// second probe.
		if !b.probe.CompareAndSwap(false, true) {
			return false
		}
		if !b.transition(StateOpen, StateHalfOpen, "open timeout elapsed") {
			// Another caller moved the state first; give the slot back.
			b.probe.Store(false)
			return false
		}
		b.successes.Store(0)
		return true

	case StateHalfOpen:
		switch State(b.state.Load()) {
		case StateHalfOpen:
			return b.probe.CompareAndSwap(false, true)
		case StateClosed:
			// Raced with a probe that closed the breaker.
			return true
		default:
			return false
		}
	}
	return false
}

// RecordOutcome feeds a completed call's verdict and latency into the health
// state. It must be called exactly once per permitted call, on every exit
// path including cancellation, so the HalfOpen probe slot is always released.
func (b *Breaker) RecordOutcome(v Verdict, latency time.Duration) {
	if latency > 0 && v != VerdictIgnore {
		b.latency.Observe(latency)
	}

	switch v {
	case VerdictSuccess:
		b.recordSuccess()
	case VerdictFailure:
		b.recordFailure()
	case VerdictIgnore:
		// No streak movement.
	}

	// Release the probe slot unconditionally: if this outcome belonged to
	// the HalfOpen probe, recovery must not stall on it.
	if State(b.state.Load()) == StateHalfOpen {
		b.probe.Store(false)
	}
}

func (b *Breaker) recordSuccess() {
	b.failures.Store(0)

	if State(b.state.Load()) != StateHalfOpen {
		return
	}
	n := b.successes.Add(1)
	if n >= int64(b.cfg.SuccessThreshold) {
		if b.transition(StateHalfOpen, StateClosed, "success threshold reached") {
			b.failures.Store(0)
			b.successes.Store(0)
			b.probe.Store(false)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.successes.Store(0)

	switch State(b.state.Load()) {
	case StateClosed:
		n := b.failures.Add(1)
		if n >= int64(b.cfg.FailureThreshold) {
			b.transition(StateClosed, StateOpen, "failure threshold reached")
		}
	case StateHalfOpen:
		// Any failure while probing reopens immediately.
		b.failures.Add(1)
		if b.transition(StateHalfOpen, StateOpen, "probe failed") {
			b.probe.Store(false)
		}
	case StateOpen:
		// Late completion of a call permitted before the trip; the
		// streak is kept but no transition applies.
		b.failures.Add(1)
	}
}

// transition performs a single CAS state change and fires the callback.
// Returns false if another goroutine transitioned first.
func (b *Breaker) transition(from, to State, reason string) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	b.transitionAt.Store(b.now().UnixNano())

	slog.Info("breaker state change",
		"provider", b.provider,
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
	)
	if b.onTransition != nil {
		b.onTransition(b.provider, from, to, reason)
	}
	return true
}

// Acquire increments the in-flight counter. Call on dispatch, paired with
// Release on every completion path including timeout and cancellation.
func (b *Breaker) Acquire() {
	b.inFlight.Add(1)
}

// Release decrements the in-flight counter.
func (b *Breaker) Release() {
	b.inFlight.Add(-1)
}

// Health returns a point-in-time snapshot of the provider's health state.
func (b *Breaker) Health() Health {
	return Health{
		State:                State(b.state.Load()),
		ConsecutiveFailures:  b.failures.Load(),
		ConsecutiveSuccesses: b.successes.Load(),
		InFlight:             b.inFlight.Load(),
		Latency:              b.latency.Value(),
		LastTransition:       time.Unix(0, b.transitionAt.Load()),
	}
}

// Reset forces the breaker back to Closed with zeroed streaks. Intended for
// admin endpoints and tests.
func (b *Breaker) Reset() {
	b.state.Store(int32(StateClosed))
	b.failures.Store(0)
	b.successes.Store(0)
	b.probe.Store(false)
	b.transitionAt.Store(b.now().UnixNano())
}
