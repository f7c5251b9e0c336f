package balancer

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// RoundRobinStrategy distributes requests evenly across candidates using a
// shared atomic cursor per candidate-set key, so fairness holds under
// concurrency and distinct candidate sets never interleave their rotations.
type RoundRobinStrategy struct {
	cursors sync.Map // candidate-set key -> *atomic.Uint64
}

// NewRoundRobinStrategy creates a round-robin strategy.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Select picks the next candidate by fetch-and-add on the set's cursor.
func (s *RoundRobinStrategy) Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error) {
	avail := eligible(candidates)
	if len(avail) == 0 {
		return nil, ErrNoCandidates
	}
	if len(avail) == 1 {
		return avail[0], nil
	}
	return avail[s.next(avail)], nil
}

// next returns the rotation index for this candidate set.
func (s *RoundRobinStrategy) next(avail []*registry.Entry) int {
	val, _ := s.cursors.LoadOrStore(setKey(avail), &atomic.Uint64{})
	cursor := val.(*atomic.Uint64)
	return int((cursor.Add(1) - 1) % uint64(len(avail)))
}

// RecordResult is a no-op; round-robin is not adaptive.
func (s *RoundRobinStrategy) RecordResult(provider string, outcome providers.Outcome) {}

// Name returns the strategy name.
func (s *RoundRobinStrategy) Name() string { return RoundRobin }

// Reset clears all cursors.
func (s *RoundRobinStrategy) Reset() {
	s.cursors.Range(func(key, _ any) bool {
		s.cursors.Delete(key)
		return true
	})
}

// setKey derives a stable key for a candidate set. Candidate order is already
// deterministic (the registry index sorts by provider name).
func setKey(entries []*registry.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Name())
	}
	return b.String()
}
