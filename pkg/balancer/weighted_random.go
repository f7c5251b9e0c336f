package balancer

import (
	"math/rand/v2"

	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// WeightedRandomStrategy picks candidates with probability proportional to
// their configured static weight. Intended for staged rollouts, where a new
// provider takes a small weighted share of traffic.
type WeightedRandomStrategy struct{}

// NewWeightedRandomStrategy creates a weighted-random strategy.
func NewWeightedRandomStrategy() *WeightedRandomStrategy {
	return &WeightedRandomStrategy{}
}

// Select draws a candidate proportionally to weight. Candidates with zero or
// negative weight are excluded unless every candidate is weightless, in which
// case selection is uniform.
func (s *WeightedRandomStrategy) Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error) {
	avail := eligible(candidates)
	if len(avail) == 0 {
		return nil, ErrNoCandidates
	}
	if len(avail) == 1 {
		return avail[0], nil
	}

	total := 0
	for _, c := range avail {
		if w := c.Provider.Weight(); w > 0 {
			total += w
		}
	}
	if total == 0 {
		return avail[rand.IntN(len(avail))], nil
	}

	n := rand.IntN(total)
	for _, c := range avail {
		w := c.Provider.Weight()
		if w <= 0 {
			continue
		}
		if n < w {
			return c, nil
		}
		n -= w
	}
	return avail[len(avail)-1], nil
}

// RecordResult is a no-op; weighted-random is not adaptive.
func (s *WeightedRandomStrategy) RecordResult(provider string, outcome providers.Outcome) {}

// Name returns the strategy name.
func (s *WeightedRandomStrategy) Name() string { return WeightedRandom }

// Reset is a no-op.
func (s *WeightedRandomStrategy) Reset() {}
