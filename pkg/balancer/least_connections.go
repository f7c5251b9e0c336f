package balancer

import (
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// LeastConnectionsStrategy picks the candidate with the fewest in-flight
// requests, read from the shared per-provider health state. The in-flight
// counter is incremented on dispatch and decremented on every completion path
// including timeout and cancellation, so it cannot drift.
type LeastConnectionsStrategy struct {
	tiebreak *RoundRobinStrategy
}

// NewLeastConnectionsStrategy creates a least-connections strategy.
func NewLeastConnectionsStrategy() *LeastConnectionsStrategy {
	return &LeastConnectionsStrategy{tiebreak: NewRoundRobinStrategy()}
}

// Select picks the candidate with the smallest in-flight count.
func (s *LeastConnectionsStrategy) Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error) {
	avail := eligible(candidates)
	if len(avail) == 0 {
		return nil, ErrNoCandidates
	}

	best := avail[:0:0]
	bestInFlight := int64(-1)
	for _, c := range avail {
		n := c.Breaker.Health().InFlight
		switch {
		case bestInFlight < 0 || n < bestInFlight:
			bestInFlight = n
			best = append(best[:0], c)
		case n == bestInFlight:
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	return s.tiebreak.Select(req, best)
}

// RecordResult is a no-op: dispatch accounting happens on the breaker.
func (s *LeastConnectionsStrategy) RecordResult(provider string, outcome providers.Outcome) {}

// Name returns the strategy name.
func (s *LeastConnectionsStrategy) Name() string { return LeastConnections }

// Reset clears the tie-break cursors.
func (s *LeastConnectionsStrategy) Reset() { s.tiebreak.Reset() }
