package balancer

import (
	"time"

	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// CostOptimizedStrategy picks the cheapest candidate (by static cost per
// million tokens) among those meeting the latency floor; candidates whose
// rolling latency exceeds the floor are skipped unless nothing else remains.
// Ties are broken by least latency.
type CostOptimizedStrategy struct {
	// latencyFloor is the maximum acceptable rolling latency. Zero disables
	// the floor.
	latencyFloor time.Duration

	tiebreak *LeastLatencyStrategy
}

// NewCostOptimizedStrategy creates a cost-optimized strategy with the given
// latency floor (zero disables it).
func NewCostOptimizedStrategy(latencyFloor time.Duration) *CostOptimizedStrategy {
	return &CostOptimizedStrategy{
		latencyFloor: latencyFloor,
		tiebreak:     NewLeastLatencyStrategy(),
	}
}

// Select picks the cheapest acceptable candidate.
func (s *CostOptimizedStrategy) Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error) {
	avail := eligible(candidates)
	if len(avail) == 0 {
		return nil, ErrNoCandidates
	}

	acceptable := avail
	if s.latencyFloor > 0 {
		within := make([]*registry.Entry, 0, len(avail))
		for _, c := range avail {
			if l := c.Breaker.Health().Latency; l == 0 || l <= s.latencyFloor {
				within = append(within, c)
			}
		}
		// A floor that excludes everything degrades to cost-only rather
		// than failing the request.
		if len(within) > 0 {
			acceptable = within
		}
	}

	best := acceptable[:0:0]
	bestCost := -1.0
	for _, c := range acceptable {
		cost := c.Provider.CostPerMToken()
		switch {
		case bestCost < 0 || cost < bestCost:
			bestCost = cost
			best = append(best[:0], c)
		case cost == bestCost:
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	return s.tiebreak.Select(req, best)
}

// RecordResult is a no-op: latency feedback arrives via the shared health
// state.
func (s *CostOptimizedStrategy) RecordResult(provider string, outcome providers.Outcome) {}

// Name returns the strategy name.
func (s *CostOptimizedStrategy) Name() string { return CostOptimized }

// Reset clears the tie-break state.
func (s *CostOptimizedStrategy) Reset() { s.tiebreak.Reset() }
