package healthcheck

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meridian-gw/meridian/internal/testutil"
	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// fakeClock lets tests control the breaker open timeout without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestProber(t *testing.T, clock *fakeClock) (*Prober, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.WithBreakerOptions(breaker.WithClock(clock.Now)))
	p := New(reg, Config{Timeout: time.Second})
	return p, reg
}

func TestRunOnceHealthyProviderStaysClosed(t *testing.T) {
	p, reg := newTestProber(t, newFakeClock())
	m := testutil.NewMockProvider("openai", "gpt-4o")
	entry, err := reg.Register(m, breaker.Config{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p.RunOnce(context.Background())

	h := entry.Breaker.Health()
	if h.State != breaker.StateClosed {
		t.Fatalf("state = %v, want closed", h.State)
	}
	if h.ConsecutiveFailures != 0 {
		t.Fatalf("failures = %d, want 0", h.ConsecutiveFailures)
	}
	if h.Latency == 0 {
		t.Error("probe latency was not recorded")
	}
}

func TestRunOnceReportsProbeStatus(t *testing.T) {
	clock := newFakeClock()
	reg := registry.New(registry.WithBreakerOptions(breaker.WithClock(clock.Now)))
	p := New(reg, Config{Timeout: time.Second, LatencyBudget: 50 * time.Millisecond})

	fast := testutil.NewMockProvider("fast", "gpt-4o")
	slow := testutil.NewMockProvider("slow", "gpt-4o")
	slow.HealthCheckFunc = func(ctx context.Context) error {
		time.Sleep(80 * time.Millisecond)
		return nil
	}
	down := testutil.NewMockProvider("down", "gpt-4o")
	down.SetHealthy(false)

	for _, m := range []*testutil.MockProvider{fast, slow, down} {
		if _, err := reg.Register(m, breaker.Config{}); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name(), err)
		}
	}

	p.RunOnce(context.Background())

	status := p.Status()
	want := map[string]providers.HealthStatus{
		"fast": providers.Healthy,
		"slow": providers.Degraded,
		"down": providers.Unhealthy,
	}
	for name, ws := range want {
		if got, ok := status[name]; !ok || got != ws {
			t.Errorf("status[%s] = %v (present=%t), want %v", name, got, ok, ws)
		}
	}

	// A slow probe is still a success for the breaker.
	if got := reg.Get("slow").Breaker.State(); got != breaker.StateClosed {
		t.Errorf("slow provider breaker state = %v, want closed", got)
	}
}

func TestRunOnceUnhealthyProviderTripsBreaker(t *testing.T) {
	p, reg := newTestProber(t, newFakeClock())
	m := testutil.NewMockProvider("openai", "gpt-4o")
	m.SetHealthy(false)
	entry, err := reg.Register(m, breaker.Config{FailureThreshold: 3, OpenTimeout: time.Minute})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		p.RunOnce(context.Background())
	}

	if got := entry.Breaker.State(); got != breaker.StateOpen {
		t.Fatalf("state after 3 failed probes = %v, want open", got)
	}
}

func TestRunOnceRespectsOpenBreaker(t *testing.T) {
	clock := newFakeClock()
	p, reg := newTestProber(t, clock)
	m := testutil.NewMockProvider("openai", "gpt-4o")
	m.SetHealthy(false)
	entry, err := reg.Register(m, breaker.Config{FailureThreshold: 1, OpenTimeout: time.Minute})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p.RunOnce(context.Background())
	if got := entry.Breaker.State(); got != breaker.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	// The open timeout has not elapsed: the probe must be suppressed, so
	// the failure streak stays where the trip left it.
	before := entry.Breaker.Health().ConsecutiveFailures
	p.RunOnce(context.Background())
	if got := entry.Breaker.Health().ConsecutiveFailures; got != before {
		t.Fatalf("failures = %d, want unchanged %d (probe should be suppressed)", got, before)
	}
	if got := entry.Breaker.State(); got != breaker.StateOpen {
		t.Fatalf("state = %v, want still open", got)
	}
}

func TestProbesRecoverTrippedProvider(t *testing.T) {
	clock := newFakeClock()
	p, reg := newTestProber(t, clock)
	m := testutil.NewMockProvider("openai", "gpt-4o")
	m.SetHealthy(false)
	entry, err := reg.Register(m, breaker.Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Trip the breaker, then let the provider recover.
	p.RunOnce(context.Background())
	if got := entry.Breaker.State(); got != breaker.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	m.SetHealthy(true)

	// After the open timeout, successive probes walk the breaker through
	// half-open back to closed with zero request traffic.
	clock.Advance(31 * time.Second)
	p.RunOnce(context.Background())
	if got := entry.Breaker.State(); got != breaker.StateHalfOpen {
		t.Fatalf("state after first probe = %v, want half-open", got)
	}
	p.RunOnce(context.Background())
	if got := entry.Breaker.State(); got != breaker.StateClosed {
		t.Fatalf("state after second probe = %v, want closed", got)
	}
}

func TestRunOnceCancelledContextBlamesNobody(t *testing.T) {
	p, reg := newTestProber(t, newFakeClock())
	m := testutil.NewMockProvider("openai", "gpt-4o")
	m.SetHealthy(false)
	entry, err := reg.Register(m, breaker.Config{FailureThreshold: 1, OpenTimeout: time.Minute})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.RunOnce(ctx)

	if got := entry.Breaker.State(); got != breaker.StateClosed {
		t.Fatalf("state = %v, want closed (cancelled probe must not count)", got)
	}
	if got := entry.Breaker.Health().ConsecutiveFailures; got != 0 {
		t.Fatalf("failures = %d, want 0", got)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	_, reg := newTestProber(t, newFakeClock())
	p := New(reg, Config{Schedule: "not a schedule", Timeout: time.Second})
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start() with an invalid schedule should fail")
	}
}

func TestStartEmptyScheduleDisabled(t *testing.T) {
	_, reg := newTestProber(t, newFakeClock())
	p := New(reg, Config{Timeout: time.Second})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() with empty schedule should be a no-op, got %v", err)
	}
	p.Stop()
}

func TestScheduledProbing(t *testing.T) {
	_, reg := newTestProber(t, newFakeClock())
	m := testutil.NewMockProvider("openai", "gpt-4o")
	entry, err := reg.Register(m, breaker.Config{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p := New(reg, Config{Schedule: "@every 100ms", Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	deadline := time.After(5 * time.Second)
	for entry.Breaker.Health().Latency == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled probe never ran")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
