package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
)

// Config configures the prober.
type Config struct {
	// Schedule is the probe schedule in cron syntax. Descriptors such as
	// "@every 30s" are accepted.
	Schedule string

	// Timeout bounds each individual probe.
	Timeout time.Duration

	// LatencyBudget is the probe duration above which a succeeding
	// provider is reported Degraded instead of Healthy.
	LatencyBudget time.Duration
}

// Prober runs scheduled health checks against every registered provider and
// feeds the results into the providers' circuit breakers.
//
// Probes go through the breaker the same way request traffic does: Permit is
// asked first, so an open breaker suppresses probing until its timeout
// elapses, and a half-open breaker admits exactly one probe at a time. This
// lets an idle gateway recover tripped providers without waiting for
// traffic.
type Prober struct {
	reg    *registry.Registry
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	status  map[string]providers.HealthStatus
}

// New creates a prober over the registry.
func New(reg *registry.Registry, cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = 2 * time.Second
	}
	return &Prober{
		reg:    reg,
		cfg:    cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "healthcheck"),
		status: make(map[string]providers.HealthStatus),
	}
}

// Start schedules probing and returns. Probing stops when the context is
// cancelled or Stop is called. An empty schedule disables the prober.
func (p *Prober) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Schedule == "" {
		p.logger.Info("health check schedule not configured, prober disabled")
		return nil
	}
	if _, err := cron.ParseStandard(p.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid health check schedule %q: %w", p.cfg.Schedule, err)
	}

	if _, err := p.cron.AddFunc(p.cfg.Schedule, func() {
		p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule health checks: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("health check prober started",
		"schedule", p.cfg.Schedule,
		"timeout", p.cfg.Timeout,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts scheduling and waits for in-flight probes to finish.
func (p *Prober) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("health check prober stopped")
}

// RunOnce probes every registered provider once, sequentially. Exported so a
// startup sequence can establish initial health before serving traffic.
func (p *Prober) RunOnce(ctx context.Context) {
	for _, name := range p.reg.Names() {
		entry := p.reg.Get(name)
		if entry == nil {
			continue
		}
		p.probe(ctx, entry)
	}
}

func (p *Prober) probe(ctx context.Context, entry *registry.Entry) {
	br := entry.Breaker

	// Respect the breaker: an open breaker that has not timed out yet
	// rejects the probe, and a half-open breaker admits only one.
	if !br.Permit() {
		p.logger.Debug("probe suppressed by breaker",
			"provider", entry.Name(),
			"state", br.State().String(),
		)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	br.Acquire()
	start := time.Now()
	err := entry.Provider.HealthCheck(probeCtx)
	latency := time.Since(start)
	br.Release()

	switch {
	case err == nil:
		br.RecordOutcome(breaker.VerdictSuccess, latency)
		status := providers.Healthy
		if latency > p.cfg.LatencyBudget {
			status = providers.Degraded
			p.logger.Warn("health check slow",
				"provider", entry.Name(),
				"latency", latency,
				"budget", p.cfg.LatencyBudget,
			)
		}
		p.setStatus(entry.Name(), status)
	case ctx.Err() != nil:
		// The prober itself is shutting down; the provider gets no
		// blame and the probe slot is released.
		br.RecordOutcome(breaker.VerdictIgnore, latency)
	case providers.IsProviderAttributable(providers.ClassifyError(err)):
		br.RecordOutcome(breaker.VerdictFailure, latency)
		p.setStatus(entry.Name(), providers.Unhealthy)
		p.logger.Warn("health check failed",
			"provider", entry.Name(),
			"latency", latency,
			"error", err,
		)
	default:
		br.RecordOutcome(breaker.VerdictIgnore, latency)
	}
}

func (p *Prober) setStatus(provider string, s providers.HealthStatus) {
	p.mu.Lock()
	p.status[provider] = s
	p.mu.Unlock()
}

// Status returns the most recent probe result per provider. Providers never
// probed (or only probed during shutdown) are absent.
func (p *Prober) Status() map[string]providers.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]providers.HealthStatus, len(p.status))
	for name, s := range p.status {
		out[name] = s
	}
	return out
}
