package balancer

import (
	"errors"

	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// Strategy names accepted by New.
const (
	RoundRobin       = "round-robin"
	LeastLatency     = "least-latency"
	LeastConnections = "least-connections"
	CostOptimized    = "cost-optimized"
	WeightedRandom   = "weighted-random"
)

// ErrNoCandidates is returned when no selectable provider remains after
// filtering circuit-open candidates.
var ErrNoCandidates = errors.New("no selectable providers")

// Strategy picks one provider from a candidate set. Implementations must be
// safe for concurrent use; selection state (cursors, weights) lives in
// per-candidate-set atomics, never behind a cross-request lock.
//
// Select must never return a provider whose breaker is Open: every strategy
// re-checks breaker state even when the caller pre-filters, since a breaker
// can trip between filtering and selection.
type Strategy interface {
	// Select picks a provider for the request from the candidates.
	// Returns ErrNoCandidates if none is selectable.
	Select(req *providers.Request, candidates []*registry.Entry) (*registry.Entry, error)

	// RecordResult feeds a call outcome back into the strategy. Adaptive
	// strategies that read the shared per-provider health state treat this
	// as a no-op, since the circuit breaker has already folded the outcome
	// into it.
	RecordResult(provider string, outcome providers.Outcome)

	// Name returns the strategy's configured name.
	Name() string

	// Reset clears internal selection state. Primarily for tests.
	Reset()
}

// New creates the named strategy.
func New(name string) (Strategy, error) {
	switch name {
	case RoundRobin, "":
		return NewRoundRobinStrategy(), nil
	case LeastLatency:
		return NewLeastLatencyStrategy(), nil
	case LeastConnections:
		return NewLeastConnectionsStrategy(), nil
	case CostOptimized:
		return NewCostOptimizedStrategy(0), nil
	case WeightedRandom:
		return NewWeightedRandomStrategy(), nil
	default:
		return nil, &UnknownStrategyError{Strategy: name}
	}
}

// Names returns the valid strategy names.
func Names() []string {
	return []string{RoundRobin, LeastLatency, LeastConnections, CostOptimized, WeightedRandom}
}

// eligible filters out candidates whose breaker is currently Open.
func eligible(candidates []*registry.Entry) []*registry.Entry {
	out := make([]*registry.Entry, 0, len(candidates))
	for _, c := range candidates {
		if c.Breaker.State() != breaker.StateOpen {
			out = append(out, c)
		}
	}
	return out
}
