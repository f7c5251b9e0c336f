package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridian-gw/meridian/pkg/telemetry"
)

// Namespace and subsystem applied to every metric name.
const (
	Namespace = "meridian"
	Subsystem = "gateway"
)

// LatencyBuckets covers provider call latencies from fast cache-like
// responses to long generation calls.
var LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Collector records routing telemetry as Prometheus metrics. It implements
// the telemetry.Emitter interface and is safe for concurrent use.
//
// Metrics:
//   - meridian_gateway_attempts_total: provider call attempts by outcome
//   - meridian_gateway_attempt_latency_seconds: provider call latency
//   - meridian_gateway_tokens_total: tokens consumed per provider and model
//   - meridian_gateway_breaker_state: breaker state (0=closed, 1=half_open, 2=open)
//   - meridian_gateway_breaker_transitions_total: breaker transitions by target state
type Collector struct {
	registry *prometheus.Registry

	attempts    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	tokens      *prometheus.CounterVec
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. A nil registry
// creates a private one, keeping gateway metrics isolated from any global
// registrations.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "attempts_total",
				Help:      "Total provider call attempts by outcome",
			},
			[]string{"provider", "model", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "attempt_latency_seconds",
				Help:      "Provider call latency in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"provider", "model"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "tokens_total",
				Help:      "Total tokens consumed per provider and model",
			},
			[]string{"provider", "model"},
		),

		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "breaker_transitions_total",
				Help:      "Total circuit breaker transitions by target state",
			},
			[]string{"provider", "to"},
		),
	}

	registry.MustRegister(
		c.attempts,
		c.latency,
		c.tokens,
		c.state,
		c.transitions,
	)
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordAttempt records one completed provider call attempt.
func (c *Collector) RecordAttempt(a telemetry.Attempt) {
	c.attempts.WithLabelValues(a.Provider, a.Model, a.Outcome).Inc()
	c.latency.WithLabelValues(a.Provider, a.Model).Observe(a.Latency.Seconds())
	if a.TokensUsed > 0 {
		c.tokens.WithLabelValues(a.Provider, a.Model).Add(float64(a.TokensUsed))
	}
}

// RecordTransition records a breaker state change and updates the state
// gauge.
func (c *Collector) RecordTransition(tr telemetry.Transition) {
	c.transitions.WithLabelValues(tr.Provider, tr.To).Inc()
	c.state.WithLabelValues(tr.Provider).Set(stateValue(tr.To))
}

// stateValue maps a breaker state label onto the gauge scale. Unknown labels
// map to closed.
func stateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}
