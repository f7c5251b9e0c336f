package breaker

import (
	"math"
	"sync/atomic"
	"time"
)

// State is the circuit breaker state.
type State int32

const (
	// StateClosed is the normal state: calls flow through and failures are
	// counted.
	StateClosed State = iota

	// StateOpen blocks all calls until the open timeout elapses.
	StateOpen

	// StateHalfOpen admits a single probe call to test recovery.
	StateHalfOpen
)

// String returns the state as a stable label for logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config contains circuit breaker thresholds. Immutable once applied;
// per-provider overrides are resolved at registration time.
type Config struct {
	// FailureThreshold is the number of consecutive provider-attributable
	// failures that trips a Closed breaker to Open.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successful probes that
	// closes a HalfOpen breaker.
	SuccessThreshold int

	// OpenTimeout is how long an Open breaker blocks calls before the next
	// permission check transitions it to HalfOpen.
	OpenTimeout time.Duration
}

// DefaultConfig returns balanced breaker settings for external LLM APIs.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	return c
}

// Health is a point-in-time snapshot of a provider's health state, safe to
// read without locks. Balancing strategies consume it for adaptive selection.
type Health struct {
	// State is the breaker state at snapshot time.
	State State

	// ConsecutiveFailures is the current failure streak.
	ConsecutiveFailures int64

	// ConsecutiveSuccesses is the current HalfOpen success streak.
	ConsecutiveSuccesses int64

	// InFlight is the number of requests currently dispatched to the
	// provider.
	InFlight int64

	// Latency is the rolling (exponentially weighted) average call latency.
	// Zero until the first completed call.
	Latency time.Duration

	// LastTransition is when the breaker last changed state.
	LastTransition time.Time
}

// ewmaAlpha is the smoothing factor for the rolling latency average. Higher
// values weight recent samples more heavily.
const ewmaAlpha = 0.3

// latencyEWMA maintains a lock-free exponentially weighted moving average of
// call latencies. The value is stored as float64 bits in a single atomic word
// and updated with a compare-and-swap loop so concurrent completions never
// lose samples to torn writes.
type latencyEWMA struct {
	bits atomic.Uint64
}

// Observe folds a new latency sample into the average.
func (e *latencyEWMA) Observe(sample time.Duration) {
	s := float64(sample)
	for {
		old := e.bits.Load()
		cur := math.Float64frombits(old)
		var next float64
		if cur == 0 {
			next = s
		} else {
			next = ewmaAlpha*s + (1-ewmaAlpha)*cur
		}
		if e.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Value returns the current average, or zero if no samples were observed.
func (e *latencyEWMA) Value() time.Duration {
	return time.Duration(math.Float64frombits(e.bits.Load()))
}
