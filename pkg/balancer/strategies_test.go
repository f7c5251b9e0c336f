package balancer

import (
	"testing"
	"time"

	"github.com/meridian-gw/meridian/internal/testutil"
	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

func entriesFor(t *testing.T, r *registry.Registry, mocks ...*testutil.MockProvider) []*registry.Entry {
	t.Helper()
	entries := make([]*registry.Entry, 0, len(mocks))
	for _, m := range mocks {
		e, err := r.Register(m, breaker.Config{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Hour})
		if err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "round-robin", want: RoundRobin},
		{name: "", want: RoundRobin},
		{name: "least-latency", want: LeastLatency},
		{name: "least-connections", want: LeastConnections},
		{name: "cost-optimized", want: CostOptimized},
		{name: "weighted-random", want: WeightedRandom},
		{name: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("name="+tt.name, func(t *testing.T) {
			s, err := New(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%q) did not fail", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.name, err)
			}
			if s.Name() != tt.want {
				t.Fatalf("Name() = %q, want %q", s.Name(), tt.want)
			}
		})
	}
}

func TestRoundRobinFairRotation(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("p1", "m"),
		testutil.NewMockProvider("p2", "m"),
		testutil.NewMockProvider("p3", "m"),
	)
	s := NewRoundRobinStrategy()
	req := &providers.Request{Model: "m"}

	want := []string{"p1", "p2", "p3", "p1", "p2", "p3"}
	for i, w := range want {
		e, err := s.Select(req, entries)
		if err != nil {
			t.Fatalf("select %d error = %v", i, err)
		}
		if e.Name() != w {
			t.Fatalf("select %d = %s, want %s", i, e.Name(), w)
		}
	}
}

func TestRoundRobinSeparateCursorsPerCandidateSet(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("p1", "m"),
		testutil.NewMockProvider("p2", "m"),
		testutil.NewMockProvider("p3", "m"),
	)
	s := NewRoundRobinStrategy()
	req := &providers.Request{Model: "m"}

	// Advance the full set's cursor.
	if e, _ := s.Select(req, entries); e.Name() != "p1" {
		t.Fatal("full-set rotation did not start at p1")
	}

	// A different candidate set starts its own rotation from the beginning.
	sub := entries[1:]
	if e, _ := s.Select(req, sub); e.Name() != "p2" {
		t.Fatal("sub-set rotation did not start at its first candidate")
	}

	// The full set's cursor was not disturbed.
	if e, _ := s.Select(req, entries); e.Name() != "p2" {
		t.Fatal("full-set cursor advanced by a different candidate set")
	}
}

func TestStrategiesNeverReturnOpenBreaker(t *testing.T) {
	strategies := []Strategy{
		NewRoundRobinStrategy(),
		NewLeastLatencyStrategy(),
		NewLeastConnectionsStrategy(),
		NewCostOptimizedStrategy(0),
		NewWeightedRandomStrategy(),
	}
	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			r := registry.New()
			entries := entriesFor(t, r,
				testutil.NewMockProvider("p1", "m"),
				testutil.NewMockProvider("p2", "m"),
			)
			entries[0].Breaker.RecordOutcome(breaker.VerdictFailure, time.Millisecond)

			req := &providers.Request{Model: "m"}
			for i := 0; i < 20; i++ {
				e, err := s.Select(req, entries)
				if err != nil {
					t.Fatalf("Select() error = %v", err)
				}
				if e.Name() == "p1" {
					t.Fatal("strategy returned a provider with an open breaker")
				}
			}
		})
	}
}

func TestStrategiesAllOpenReturnsError(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r, testutil.NewMockProvider("p1", "m"))
	entries[0].Breaker.RecordOutcome(breaker.VerdictFailure, time.Millisecond)

	s := NewRoundRobinStrategy()
	if _, err := s.Select(&providers.Request{Model: "m"}, entries); err != ErrNoCandidates {
		t.Fatalf("Select() error = %v, want ErrNoCandidates", err)
	}
}

func TestLeastLatencyPrefersFasterProvider(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("slow", "m"),
		testutil.NewMockProvider("fast", "m"),
	)
	// Feed latency samples through the breaker, as real call completions do.
	for i := 0; i < 5; i++ {
		entries[0].Breaker.RecordOutcome(breaker.VerdictSuccess, 800*time.Millisecond)
		entries[1].Breaker.RecordOutcome(breaker.VerdictSuccess, 50*time.Millisecond)
	}

	s := NewLeastLatencyStrategy()
	for i := 0; i < 10; i++ {
		e, err := s.Select(&providers.Request{Model: "m"}, entries)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if e.Name() != "fast" {
			t.Fatalf("Select() = %s, want fast", e.Name())
		}
	}
}

func TestLeastLatencyUnsampledProviderSelectedFirst(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("warm", "m"),
		testutil.NewMockProvider("cold", "m"),
	)
	entries[0].Breaker.RecordOutcome(breaker.VerdictSuccess, 100*time.Millisecond)

	s := NewLeastLatencyStrategy()
	e, err := s.Select(&providers.Request{Model: "m"}, entries)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if e.Name() != "cold" {
		t.Fatalf("Select() = %s, want the unsampled provider", e.Name())
	}
}

func TestLeastConnectionsPrefersIdleProvider(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("busy", "m"),
		testutil.NewMockProvider("idle", "m"),
	)
	entries[0].Breaker.Acquire()
	entries[0].Breaker.Acquire()
	defer func() {
		entries[0].Breaker.Release()
		entries[0].Breaker.Release()
	}()

	s := NewLeastConnectionsStrategy()
	e, err := s.Select(&providers.Request{Model: "m"}, entries)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if e.Name() != "idle" {
		t.Fatalf("Select() = %s, want idle", e.Name())
	}
}

func TestCostOptimizedPrefersCheapestWithinFloor(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("cheap-slow", "m").WithCost(1.0),
		testutil.NewMockProvider("pricey-fast", "m").WithCost(15.0),
	)
	for i := 0; i < 5; i++ {
		entries[0].Breaker.RecordOutcome(breaker.VerdictSuccess, 2*time.Second)
		entries[1].Breaker.RecordOutcome(breaker.VerdictSuccess, 100*time.Millisecond)
	}

	req := &providers.Request{Model: "m"}

	// No floor: cheapest wins regardless of latency.
	noFloor := NewCostOptimizedStrategy(0)
	if e, _ := noFloor.Select(req, entries); e.Name() != "cheap-slow" {
		t.Fatalf("no-floor Select() = %s, want cheap-slow", e.Name())
	}

	// A 500ms floor excludes the slow provider.
	floored := NewCostOptimizedStrategy(500 * time.Millisecond)
	if e, _ := floored.Select(req, entries); e.Name() != "pricey-fast" {
		t.Fatalf("floored Select() = %s, want pricey-fast", e.Name())
	}
}

func TestWeightedRandomRespectsWeights(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("heavy", "m").WithWeight(9),
		testutil.NewMockProvider("light", "m").WithWeight(1),
	)

	s := NewWeightedRandomStrategy()
	counts := map[string]int{}
	const draws = 2000
	for i := 0; i < draws; i++ {
		e, err := s.Select(&providers.Request{Model: "m"}, entries)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		counts[e.Name()]++
	}

	// Expected 90/10 split; allow a generous margin for randomness.
	if counts["heavy"] < draws*7/10 {
		t.Fatalf("heavy selected %d/%d times, want the dominant share", counts["heavy"], draws)
	}
	if counts["light"] == 0 {
		t.Fatal("light provider never selected")
	}
}

func TestWeightedRandomZeroWeightsUniform(t *testing.T) {
	r := registry.New()
	entries := entriesFor(t, r,
		testutil.NewMockProvider("a", "m").WithWeight(0),
		testutil.NewMockProvider("b", "m").WithWeight(0),
	)

	s := NewWeightedRandomStrategy()
	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		e, err := s.Select(&providers.Request{Model: "m"}, entries)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		counts[e.Name()]++
	}
	if counts["a"] == 0 || counts["b"] == 0 {
		t.Fatalf("uniform fallback skipped a candidate: %v", counts)
	}
}
