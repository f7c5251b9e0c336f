package balancer

import (
	"time"

	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// LeastLatencyStrategy picks the candidate with the lowest rolling-average
// latency, read from the shared per-provider health state. Providers without
// samples yet sort first so new capacity gets traffic promptly. Ties are
// broken round-robin.
type LeastLatencyStrategy struct {
	tiebreak *RoundRobinStrategy
}

// NewLeastLatencyStrategy creates a least-latency strategy.
func NewLeastLatencyStrategy() *LeastLatencyStrategy {
	return &LeastLatencyStrategy{tiebreak: NewRoundRobinStrategy()}
}

// Select picks the lowest-latency candidate.
func (s *LeastLatencyStrategy) Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error) {
	avail := eligible(candidates)
	if len(avail) == 0 {
		return nil, ErrNoCandidates
	}

	best := avail[:0:0]
	bestLatency := time.Duration(-1)
	for _, c := range avail {
		l := c.Breaker.Health().Latency
		switch {
		case bestLatency < 0 || l < bestLatency:
			bestLatency = l
			best = append(best[:0], c)
		case l == bestLatency:
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	return s.tiebreak.Select(req, best)
}

// RecordResult is a no-op: the breaker already folds latencies into the
// shared health state this strategy reads.
func (s *LeastLatencyStrategy) RecordResult(provider string, outcome providers.Outcome) {}

// Name returns the strategy name.
func (s *LeastLatencyStrategy) Name() string { return LeastLatency }

// Reset clears the tie-break cursors.
func (s *LeastLatencyStrategy) Reset() { s.tiebreak.Reset() }
