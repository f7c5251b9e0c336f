package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/meridian-gw/meridian/internal/testutil"
	"github.com/meridian-gw/meridian/pkg/breaker"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()

	if _, err := r.Register(testutil.NewMockProvider("openai", "gpt-4o", "gpt-4o-mini"), breaker.Config{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := r.Register(testutil.NewMockProvider("anthropic", "claude-sonnet", "gpt-4o"), breaker.Config{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := r.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if e := r.Get("openai"); e == nil || e.Name() != "openai" {
		t.Fatalf("Get(openai) = %v", e)
	}
	if e := r.Get("missing"); e != nil {
		t.Fatalf("Get(missing) = %v, want nil", e)
	}

	both := r.ProvidersForModel("gpt-4o")
	if len(both) != 2 {
		t.Fatalf("ProvidersForModel(gpt-4o) = %d entries, want 2", len(both))
	}
	// Entry order follows sorted provider names.
	if both[0].Name() != "anthropic" || both[1].Name() != "openai" {
		t.Fatalf("model entry order = [%s, %s], want [anthropic, openai]", both[0].Name(), both[1].Name())
	}

	only := r.ProvidersForModel("claude-sonnet")
	if len(only) != 1 || only[0].Name() != "anthropic" {
		t.Fatalf("ProvidersForModel(claude-sonnet) = %v", only)
	}
	if got := r.ProvidersForModel("unknown-model"); len(got) != 0 {
		t.Fatalf("ProvidersForModel(unknown) = %d entries, want 0", len(got))
	}
}

func TestRegisterValidation(t *testing.T) {
	r := New()
	if _, err := r.Register(nil, breaker.Config{}); err == nil {
		t.Fatal("Register(nil) did not fail")
	}
	if _, err := r.Register(testutil.NewMockProvider(""), breaker.Config{}); err == nil {
		t.Fatal("Register with empty name did not fail")
	}
}

func TestRegisterCreatesClosedBreaker(t *testing.T) {
	r := New()
	e, err := r.Register(testutil.NewMockProvider("p1", "m"), breaker.Config{FailureThreshold: 7})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if got := e.Breaker.State(); got != breaker.StateClosed {
		t.Fatalf("new breaker state = %v, want closed", got)
	}
	if got := e.Breaker.Config().FailureThreshold; got != 7 {
		t.Fatalf("breaker failure threshold = %d, want per-provider override 7", got)
	}
}

func TestReRegisterReplacesHealthState(t *testing.T) {
	r := New()
	e1, _ := r.Register(testutil.NewMockProvider("p1", "m"), breaker.Config{FailureThreshold: 1, OpenTimeout: time.Hour})
	e1.Breaker.RecordOutcome(breaker.VerdictFailure, time.Millisecond)
	if got := e1.Breaker.State(); got != breaker.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	e2, _ := r.Register(testutil.NewMockProvider("p1", "m"), breaker.Config{FailureThreshold: 1, OpenTimeout: time.Hour})
	if got := e2.Breaker.State(); got != breaker.StateClosed {
		t.Fatalf("replacement breaker state = %v, want fresh closed state", got)
	}
	if r.Get("p1").Breaker != e2.Breaker {
		t.Fatal("registry still serving the replaced entry")
	}
}

func TestDeregister(t *testing.T) {
	r := New()
	r.Register(testutil.NewMockProvider("p1", "m"), breaker.Config{})
	r.Register(testutil.NewMockProvider("p2", "m"), breaker.Config{})

	r.Deregister("p1")
	if r.Get("p1") != nil {
		t.Fatal("Get(p1) returned an entry after deregistration")
	}
	if got := r.ProvidersForModel("m"); len(got) != 1 || got[0].Name() != "p2" {
		t.Fatalf("ProvidersForModel(m) = %v after deregister", got)
	}

	// Unknown name is a no-op.
	r.Deregister("missing")
	if got := r.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestHealthyProvidersForModelFiltersOpenBreakers(t *testing.T) {
	r := New()
	e1, _ := r.Register(testutil.NewMockProvider("p1", "m"), breaker.Config{FailureThreshold: 1, OpenTimeout: time.Hour})
	r.Register(testutil.NewMockProvider("p2", "m"), breaker.Config{})

	e1.Breaker.RecordOutcome(breaker.VerdictFailure, time.Millisecond)

	healthy := r.HealthyProvidersForModel("m")
	if len(healthy) != 1 || healthy[0].Name() != "p2" {
		t.Fatalf("HealthyProvidersForModel = %v, want only p2", names(healthy))
	}
	if got := r.ProvidersForModel("m"); len(got) != 2 {
		t.Fatalf("ProvidersForModel = %d entries, want 2 (unfiltered)", len(got))
	}
}

func TestConcurrentLookupsDuringRegistration(t *testing.T) {
	r := New()
	r.Register(testutil.NewMockProvider("seed", "m"), breaker.Config{})

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				entries := r.ProvidersForModel("m")
				// Every observed snapshot must be internally consistent:
				// no nil entries, no nil breakers.
				for _, e := range entries {
					if e == nil || e.Breaker == nil || e.Provider == nil {
						t.Error("observed inconsistent index snapshot")
						return
					}
				}
			}
		}()
	}

	names := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 50; i++ {
		name := names[i%len(names)]
		r.Register(testutil.NewMockProvider(name, "m"), breaker.Config{})
		r.Deregister(name)
	}
	close(done)
	wg.Wait()
}

func names(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name()
	}
	return out
}
