package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridian-gw/meridian/pkg/balancer"
	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/config"
	"github.com/meridian-gw/meridian/pkg/healthcheck"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/providers/generic"
	"github.com/meridian-gw/meridian/pkg/registry"
	"github.com/meridian-gw/meridian/pkg/retry"
	"github.com/meridian-gw/meridian/pkg/router"
	"github.com/meridian-gw/meridian/pkg/telemetry"
	"github.com/meridian-gw/meridian/pkg/telemetry/history"
	"github.com/meridian-gw/meridian/pkg/telemetry/metrics"
)

// Gateway assembles the routing engine from configuration and owns its
// lifecycle: provider registry, circuit breakers, balancing strategy, router,
// health prober, and telemetry sinks.
//
// A configuration reload builds a complete new runtime and swaps it in
// atomically. In-flight requests keep the runtime snapshot they started with;
// the old runtime is retired after a drain window. Telemetry sinks (metrics
// registry, attempt history) persist across reloads so counters and history
// survive; changing their configuration requires a restart.
type Gateway struct {
	store   *config.Store
	runtime atomic.Pointer[runtime]
	logger  *slog.Logger

	emitter   telemetry.Emitter
	collector *metrics.Collector
	histStore *history.Store
	recorder  *history.Recorder
	pruner    *history.Pruner

	mu sync.Mutex // serializes Reload and Close
}

// runtime is one immutable assembly of the routing engine.
type runtime struct {
	cfg      *config.Config
	registry *registry.Registry
	router   *router.Router
	prober   *healthcheck.Prober
	cancel   context.CancelFunc
}

// New assembles a gateway from the configuration.
func New(cfg *config.Config) (*Gateway, error) {
	g := &Gateway{
		store:  config.NewStore(cfg),
		logger: slog.Default().With("component", "gateway"),
	}

	emitters := telemetry.Fanout{telemetry.NewSlog(nil)}
	if cfg.Metrics.Enabled {
		g.collector = metrics.NewCollector(nil)
		emitters = append(emitters, g.collector)
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("gateway: opening attempt history: %w", err)
		}
		g.histStore = store
		g.recorder = history.NewRecorder(store, cfg.History.BufferSize)
		g.pruner = history.NewPruner(store, cfg.History.RetentionDays, cfg.History.PruneSchedule)
		emitters = append(emitters, g.recorder)
	}
	g.emitter = emitters

	rt, err := g.buildRuntime(cfg)
	if err != nil {
		g.closeSinks()
		return nil, err
	}
	g.runtime.Store(rt)
	return g, nil
}

// Start launches the background components: the health prober and, when
// history is enabled, the retention pruner. It returns immediately; the
// components stop when the context is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	rt := g.runtime.Load()
	if err := g.startProber(ctx, rt); err != nil {
		return err
	}
	if g.pruner != nil {
		if err := g.pruner.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) startProber(ctx context.Context, rt *runtime) error {
	if rt.prober == nil {
		return nil
	}
	proberCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	if err := rt.prober.Start(proberCtx); err != nil {
		cancel()
		return fmt.Errorf("gateway: starting health prober: %w", err)
	}
	return nil
}

// Route dispatches the request through the current runtime.
func (g *Gateway) Route(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	return g.runtime.Load().router.Route(ctx, req)
}

// Router returns the current runtime's router.
func (g *Gateway) Router() *router.Router {
	return g.runtime.Load().router
}

// Registry returns the current runtime's provider registry.
func (g *Gateway) Registry() *registry.Registry {
	return g.runtime.Load().registry
}

// ProbeStatus returns the latest scheduled-probe result per provider, empty
// when the prober is disabled.
func (g *Gateway) ProbeStatus() map[string]providers.HealthStatus {
	rt := g.runtime.Load()
	if rt.prober == nil {
		return nil
	}
	return rt.prober.Status()
}

// Config returns the active configuration snapshot.
func (g *Gateway) Config() *config.Config {
	return g.store.Current()
}

// MetricsEnabled reports whether a metrics collector is attached.
func (g *Gateway) MetricsEnabled() bool {
	return g.collector != nil
}

// Collector returns the metrics collector, or nil when metrics are disabled.
func (g *Gateway) Collector() *metrics.Collector {
	return g.collector
}

// Reload builds a runtime from the new configuration and swaps it in. The
// configuration must already be validated; a build failure leaves the
// current runtime serving. The old runtime keeps serving its in-flight
// requests and is retired after their deadline ceiling passes.
func (g *Gateway) Reload(ctx context.Context, cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rt, err := g.buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("gateway: reload rejected: %w", err)
	}
	if err := g.startProber(ctx, rt); err != nil {
		rt.registry.Close()
		return err
	}

	old := g.runtime.Swap(rt)
	g.store.Swap(cfg)

	g.logger.Info("configuration applied",
		"providers", rt.registry.Len(),
		"strategy", rt.router.Strategy(),
	)

	g.retire(old)
	return nil
}

// retire stops an old runtime's prober and closes its providers once
// in-flight requests have drained.
func (g *Gateway) retire(old *runtime) {
	if old == nil {
		return
	}
	if old.cancel != nil {
		old.cancel()
	}
	drain := old.cfg.Routing.DefaultDeadline + 5*time.Second
	go func() {
		time.Sleep(drain)
		if err := old.registry.Close(); err != nil {
			g.logger.Warn("closing retired providers", "error", err)
		}
	}()
}

// Close shuts down the gateway: the current runtime, then the telemetry
// sinks.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rt := g.runtime.Load()
	if rt != nil {
		if rt.cancel != nil {
			rt.cancel()
		}
		if rt.prober != nil {
			rt.prober.Stop()
		}
		if err := rt.registry.Close(); err != nil {
			g.logger.Warn("closing providers", "error", err)
		}
	}
	return g.closeSinks()
}

func (g *Gateway) closeSinks() error {
	if g.pruner != nil {
		g.pruner.Stop()
	}
	if g.recorder != nil {
		g.recorder.Close()
	}
	if g.histStore != nil {
		return g.histStore.Close()
	}
	return nil
}

// buildRuntime assembles registry, breakers, strategy, and router from the
// configuration.
func (g *Gateway) buildRuntime(cfg *config.Config) (*runtime, error) {
	reg := registry.New(registry.WithBreakerOptions(
		breaker.WithTransitionFunc(func(provider string, from, to breaker.State, reason string) {
			g.emitter.RecordTransition(telemetry.Transition{
				Provider:  provider,
				From:      from.String(),
				To:        to.String(),
				Reason:    reason,
				Timestamp: time.Now(),
			})
		}),
	))

	for name, pcfg := range cfg.Providers {
		p, err := buildProvider(name, pcfg)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("building provider %q: %w", name, err)
		}
		if _, err := reg.Register(p, breakerConfig(cfg, pcfg)); err != nil {
			reg.Close()
			return nil, fmt.Errorf("registering provider %q: %w", name, err)
		}
	}

	strategy, err := buildStrategy(&cfg.Routing)
	if err != nil {
		reg.Close()
		return nil, err
	}

	rtr, err := router.New(router.Config{
		Registry:        reg,
		Strategy:        strategy,
		Rules:           buildRules(cfg.Routing.Rules),
		DefaultDeadline: cfg.Routing.DefaultDeadline,
		PolicyFor:       policyResolver(cfg),
		Telemetry:       g.emitter,
	})
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("building router: %w", err)
	}

	rt := &runtime{cfg: cfg, registry: reg, router: rtr}
	if cfg.HealthCheck.Enabled {
		rt.prober = healthcheck.New(reg, healthcheck.Config{
			Schedule:      cfg.HealthCheck.Schedule,
			Timeout:       cfg.HealthCheck.Timeout,
			LatencyBudget: cfg.HealthCheck.LatencyBudget,
		})
	}
	return rt, nil
}

// buildProvider creates the HTTP adapter for one configured provider. The
// provider type selects the auth header style; the API key comes from the
// named environment variable so credentials never live in the file.
func buildProvider(name string, pcfg config.ProviderConfig) (providers.Provider, error) {
	auth := generic.AuthBearer
	if pcfg.Type == "anthropic" {
		auth = generic.AuthAPIKeyHeader
	}

	var apiKey string
	if pcfg.APIKeyEnv != "" {
		apiKey = os.Getenv(pcfg.APIKeyEnv)
	}

	return generic.New(generic.Config{
		Name:          name,
		Type:          pcfg.Type,
		BaseURL:       pcfg.BaseURL,
		APIKey:        apiKey,
		Auth:          auth,
		Headers:       pcfg.Headers,
		Models:        pcfg.Models,
		Weight:        pcfg.Weight,
		CostPerMToken: pcfg.CostPerMToken,
		Timeout:       pcfg.Timeout,
	})
}

func buildStrategy(rcfg *config.RoutingConfig) (balancer.Strategy, error) {
	if rcfg.Strategy == balancer.CostOptimized && rcfg.LatencyFloor > 0 {
		return balancer.NewCostOptimizedStrategy(rcfg.LatencyFloor), nil
	}
	s, err := balancer.New(rcfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("building strategy: %w", err)
	}
	return s, nil
}

func buildRules(rules []config.RuleConfig) []router.Rule {
	out := make([]router.Rule, len(rules))
	for i, r := range rules {
		out[i] = router.Rule{
			Name:      r.Name,
			Priority:  r.Priority,
			ModelGlob: r.Model,
			Provider:  r.Provider,
			Fallbacks: r.Fallbacks,
		}
	}
	return out
}

// policyResolver maps provider names to their retry policies, falling back
// to the top-level retry section. Per-attempt timeouts prefer the provider's
// own timeout setting.
func policyResolver(cfg *config.Config) func(string) retry.Policy {
	base := toPolicy(&cfg.Retry)
	overrides := make(map[string]retry.Policy, len(cfg.Providers))
	for name, pcfg := range cfg.Providers {
		p := base
		if pcfg.Retry != nil {
			p = toPolicy(pcfg.Retry)
		}
		if pcfg.Timeout > 0 {
			p.AttemptTimeout = pcfg.Timeout
		}
		if p != base {
			overrides[name] = p
		}
	}
	return func(provider string) retry.Policy {
		if p, ok := overrides[provider]; ok {
			return p
		}
		return base
	}
}

func toPolicy(rc *config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:    rc.MaxAttempts,
		BaseDelay:      rc.BaseDelay,
		MaxDelay:       rc.MaxDelay,
		Multiplier:     rc.Multiplier,
		JitterFraction: rc.JitterFraction,
		AttemptTimeout: rc.AttemptTimeout,
	}
}

func breakerConfig(cfg *config.Config, pcfg config.ProviderConfig) breaker.Config {
	bc := cfg.Breaker
	if pcfg.Breaker != nil {
		bc = *pcfg.Breaker
	}
	return breaker.Config{
		FailureThreshold: bc.FailureThreshold,
		SuccessThreshold: bc.SuccessThreshold,
		OpenTimeout:      bc.OpenTimeout,
	}
}
