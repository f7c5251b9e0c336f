package providers

import "time"

// Outcome records the result of a single provider call attempt. It is
// ephemeral: it feeds the circuit breaker, balancing strategies, and
// telemetry, and is never persisted by the routing engine itself.
type Outcome struct {
	// Success reports whether the attempt succeeded.
	Success bool

	// Kind classifies the failure when Success is false.
	Kind ErrorKind

	// Latency is the wall-clock duration of the attempt.
	Latency time.Duration

	// TokensUsed is the token count reported on success, if any.
	TokensUsed int

	// Err is the attempt error when Success is false.
	Err error
}

// SuccessOutcome builds an Outcome for a successful attempt.
func SuccessOutcome(latency time.Duration, tokens int) Outcome {
	return Outcome{Success: true, Latency: latency, TokensUsed: tokens}
}

// FailureOutcome builds an Outcome for a failed attempt.
func FailureOutcome(err error, latency time.Duration) Outcome {
	return Outcome{Success: false, Kind: ClassifyError(err), Latency: latency, Err: err}
}

// HealthStatus is the result of a scheduled provider health probe.
type HealthStatus int

const (
	// Healthy means the probe succeeded within its latency budget.
	Healthy HealthStatus = iota

	// Degraded means the probe succeeded but exceeded its latency budget.
	Degraded

	// Unhealthy means the probe failed.
	Unhealthy
)

// String returns the status as a stable label for logs and metrics.
func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}
