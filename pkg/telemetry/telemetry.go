package telemetry

import (
	"log/slog"
	"time"
)

// Attempt describes one completed provider call attempt.
type Attempt struct {
	// RequestID identifies the originating request.
	RequestID string

	// Provider is the provider that was called.
	Provider string

	// Model is the requested model.
	Model string

	// AttemptNumber counts attempts against this provider, from 1.
	AttemptNumber int

	// Outcome is "success" or the failure kind label.
	Outcome string

	// Latency is the attempt duration.
	Latency time.Duration

	// TokensUsed is the token count on success, if reported.
	TokensUsed int

	// BreakerState is the provider's breaker state after the attempt.
	BreakerState string

	// Timestamp is when the attempt completed.
	Timestamp time.Time
}

// Transition describes a circuit breaker state change.
type Transition struct {
	// Provider is the provider whose breaker transitioned.
	Provider string

	// From and To are the state labels.
	From, To string

	// Reason explains the transition.
	Reason string

	// Timestamp is when the transition occurred.
	Timestamp time.Time
}

// Emitter receives routing telemetry events. Implementations must be fast
// and non-blocking: events are emitted on the request hot path.
type Emitter interface {
	// RecordAttempt records a completed call attempt.
	RecordAttempt(a Attempt)

	// RecordTransition records a breaker state change.
	RecordTransition(tr Transition)
}

// Nop is an Emitter that discards all events.
type Nop struct{}

// RecordAttempt discards the event.
func (Nop) RecordAttempt(Attempt) {}

// RecordTransition discards the event.
func (Nop) RecordTransition(Transition) {}

// Fanout dispatches each event to every wrapped emitter in order.
type Fanout []Emitter

// RecordAttempt forwards to all emitters.
func (f Fanout) RecordAttempt(a Attempt) {
	for _, e := range f {
		e.RecordAttempt(a)
	}
}

// RecordTransition forwards to all emitters.
func (f Fanout) RecordTransition(tr Transition) {
	for _, e := range f {
		e.RecordTransition(tr)
	}
}

// Slog emits events as structured log records.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a structured-log emitter. A nil logger uses slog.Default.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger.With("component", "telemetry")}
}

// RecordAttempt logs the attempt at debug level.
func (s *Slog) RecordAttempt(a Attempt) {
	s.logger.Debug("provider attempt",
		"request_id", a.RequestID,
		"provider", a.Provider,
		"model", a.Model,
		"attempt", a.AttemptNumber,
		"outcome", a.Outcome,
		"latency", a.Latency,
		"breaker_state", a.BreakerState,
	)
}

// RecordTransition logs the transition at info level.
func (s *Slog) RecordTransition(tr Transition) {
	s.logger.Info("breaker transition",
		"provider", tr.Provider,
		"from", tr.From,
		"to", tr.To,
		"reason", tr.Reason,
	)
}
