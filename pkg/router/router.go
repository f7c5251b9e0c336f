package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-gw/meridian/pkg/balancer"
	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/registry"
	"github.com/meridian-gw/meridian/pkg/retry"
	"github.com/meridian-gw/meridian/pkg/telemetry"
)

// DefaultDeadline is the overall request budget applied when the request
// carries none.
const DefaultDeadline = 60 * time.Second

// Config assembles a Router.
type Config struct {
	// Registry holds the configured providers and health handles.
	Registry *registry.Registry

	// Strategy picks among healthy candidates. Defaults to round-robin.
	Strategy balancer.Strategy

	// Rules is the ordered routing rule set.
	Rules []Rule

	// DefaultDeadline is the overall budget for requests carrying none.
	DefaultDeadline time.Duration

	// PolicyFor resolves the retry policy for a provider. Nil applies
	// retry.DefaultPolicy to every provider.
	PolicyFor func(provider string) retry.Policy

	// Telemetry receives attempt events. Nil discards them.
	Telemetry telemetry.Emitter

	// Sleep overrides the backoff sleep, used by tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Router is the top-level request entry point. It resolves the candidate
// providers for a request, applies the balancing strategy, runs each attempt
// through the retry executor and circuit breaker, and fails over across
// candidates under a single overall wall-clock deadline.
//
// A Router is immutable after construction and safe for concurrent use; a
// configuration change builds a new Router rather than mutating this one.
type Router struct {
	reg       *registry.Registry
	strategy  balancer.Strategy
	rules     []Rule
	deadline  time.Duration
	policyFor func(provider string) retry.Policy
	emitter   telemetry.Emitter
	exec      *retry.Executor
	stats     *atomicStats
	logger    *slog.Logger
}

// New creates a Router.
func New(cfg Config) (*Router, error) {
	if cfg.Registry == nil {
		return nil, errors.New("router: registry cannot be nil")
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = balancer.NewRoundRobinStrategy()
	}
	deadline := cfg.DefaultDeadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	policyFor := cfg.PolicyFor
	if policyFor == nil {
		policyFor = func(string) retry.Policy { return retry.DefaultPolicy() }
	}
	emitter := cfg.Telemetry
	if emitter == nil {
		emitter = telemetry.Nop{}
	}

	var execOpts []retry.ExecutorOption
	if cfg.Sleep != nil {
		execOpts = append(execOpts, retry.WithSleep(cfg.Sleep))
	}

	return &Router{
		reg:       cfg.Registry,
		strategy:  strategy,
		rules:     sortRules(cfg.Rules),
		deadline:  deadline,
		policyFor: policyFor,
		emitter:   emitter,
		exec:      retry.NewExecutor(execOpts...),
		stats:     newAtomicStats(),
		logger:    slog.Default().With("component", "router"),
	}, nil
}

// Route dispatches the request to one backend provider and returns its
// response, retrying and failing over as needed.
//
// Candidates are resolved from the routing rules (first matching rule wins)
// or the model index. Circuit-open candidates are excluded up front; the
// balancing strategy is re-invoked for every pick so adaptive strategies
// always reflect current health state. A single wall-clock deadline bounds
// all attempts and fail-overs; its expiry is terminal.
func (r *Router) Route(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	r.stats.incrementTotal()

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = r.deadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	candidates := r.resolve(req)
	if len(candidates) == 0 {
		r.stats.incrementErrors()
		return nil, &ModelNotFoundError{Model: req.Model, AvailableModels: r.reg.Models()}
	}

	// Exclude candidates whose breaker is Open rather than attempting a
	// known-bad call.
	healthy := make([]*registry.Entry, 0, len(candidates))
	for _, c := range candidates {
		if c.Breaker.State() != breaker.StateOpen {
			healthy = append(healthy, c)
		}
	}
	if len(healthy) == 0 {
		r.stats.incrementErrors()
		return nil, &NoHealthyProvidersError{Model: req.Model, AttemptedProviders: entryNames(candidates)}
	}

	return r.dispatch(ctx, req, healthy, deadline)
}

// dispatch iterates candidates in strategy order, executing each under the
// retry policy and failing over on circuit denial or retry exhaustion.
func (r *Router) dispatch(ctx context.Context, req *providers.Request, remaining []*registry.Entry, deadline time.Duration) (*providers.Response, error) {
	var attempted []string
	var lastErr error
	allDenied := true

	for len(remaining) > 0 {
		// The overall deadline is checked before every fail-over; a
		// breach is terminal.
		if ctx.Err() != nil {
			r.stats.incrementErrors()
			return nil, &TimeoutError{Model: req.Model, AttemptedProviders: attempted, Deadline: deadline}
		}

		entry, err := r.strategy.Select(req, remaining)
		if err != nil {
			// Every remaining candidate tripped open since filtering.
			break
		}
		name := entry.Name()
		attempted = append(attempted, name)

		res, execErr := r.execute(ctx, req, entry)
		if execErr == nil {
			r.stats.incrementProvider(name)
			r.logger.Debug("request routed",
				"request_id", req.RequestID,
				"model", req.Model,
				"provider", name,
				"attempts", res.Attempts,
				"strategy", r.strategy.Name(),
			)
			return res.Response, nil
		}
		lastErr = execErr

		switch {
		case errors.Is(execErr, retry.ErrCircuitOpen):
			// A denial with zero attempts never touched the provider;
			// a mid-sequence trip means real failures occurred.
			var denied *retry.CircuitOpenError
			if errors.As(execErr, &denied) && denied.Attempts > 0 {
				allDenied = false
			}
		case errors.Is(execErr, retry.ErrRetriesExhausted):
			allDenied = false
		case ctx.Err() != nil:
			r.stats.incrementErrors()
			return nil, &TimeoutError{Model: req.Model, AttemptedProviders: attempted, Deadline: deadline}
		default:
			// Non-retryable client error: surfaced immediately, no
			// fail-over. The request is invalid regardless of backend.
			r.stats.incrementErrors()
			return nil, &ProviderRequestError{Provider: name, Err: execErr}
		}

		remaining = remove(remaining, entry)
		if len(remaining) > 0 {
			r.stats.incrementFailovers()
			r.logger.Warn("failing over to next provider",
				"request_id", req.RequestID,
				"model", req.Model,
				"failed_provider", name,
				"error", execErr,
			)
		}
	}

	r.stats.incrementErrors()
	if allDenied || lastErr == nil {
		return nil, &NoHealthyProvidersError{Model: req.Model, AttemptedProviders: attempted}
	}
	return nil, &AllProvidersFailedError{Model: req.Model, AttemptedProviders: attempted, LastError: lastErr}
}

// execute runs all attempts against one provider and emits per-attempt
// telemetry.
func (r *Router) execute(ctx context.Context, req *providers.Request, entry *registry.Entry) (*retry.Result, error) {
	op := func(ctx context.Context) (*providers.Response, error) {
		return entry.Provider.Invoke(ctx, req)
	}

	res, err := r.exec.Execute(ctx, entry.Name(), entry.Breaker, r.observed(req, op, entry), r.policyFor(entry.Name()))
	return res, err
}

// observed wraps the operation so each attempt's outcome reaches the
// telemetry emitter and the balancing strategy.
func (r *Router) observed(req *providers.Request, op retry.Operation, entry *registry.Entry) retry.Operation {
	attempt := 0
	return func(ctx context.Context) (*providers.Response, error) {
		attempt++
		start := time.Now()
		resp, err := op(ctx)
		latency := time.Since(start)

		var outcome providers.Outcome
		label := "success"
		tokens := 0
		if err != nil {
			outcome = providers.FailureOutcome(err, latency)
			label = outcome.Kind.String()
		} else {
			if resp != nil {
				tokens = resp.TokensUsed
			}
			outcome = providers.SuccessOutcome(latency, tokens)
		}
		r.strategy.RecordResult(entry.Name(), outcome)
		r.emitter.RecordAttempt(telemetry.Attempt{
			RequestID:     req.RequestID,
			Provider:      entry.Name(),
			Model:         req.Model,
			AttemptNumber: attempt,
			Outcome:       label,
			Latency:       latency,
			TokensUsed:    tokens,
			BreakerState:  entry.Breaker.State().String(),
			Timestamp:     time.Now(),
		})
		return resp, err
	}
}

// resolve produces the ordered candidate set for the request, honoring an
// explicit preferred-provider hint by moving it to the front.
func (r *Router) resolve(req *providers.Request) []*registry.Entry {
	candidates := resolveCandidates(r.rules, r.reg, req.Model)
	if req.PreferredProvider == "" {
		return candidates
	}

	preferred := r.reg.Get(req.PreferredProvider)
	if preferred == nil || !servesModel(preferred, req.Model) {
		return candidates
	}
	ordered := []*registry.Entry{preferred}
	for _, c := range candidates {
		if c != preferred {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// Strategy returns the name of the configured balancing strategy.
func (r *Router) Strategy() string {
	return r.strategy.Name()
}

// GetStats returns a snapshot of routing statistics.
func (r *Router) GetStats() *Stats {
	return r.stats.snapshot()
}

// ResetStats zeroes the routing statistics.
func (r *Router) ResetStats() {
	r.stats.reset()
}

// servesModel reports whether the entry's provider serves the model.
func servesModel(e *registry.Entry, model string) bool {
	for _, m := range e.Provider.Models() {
		if m == model {
			return true
		}
	}
	return false
}

// entryNames extracts provider names from a candidate list.
func entryNames(entries []*registry.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

// remove returns candidates without the given entry, preserving order.
func remove(entries []*registry.Entry, target *registry.Entry) []*registry.Entry {
	out := make([]*registry.Entry, 0, len(entries)-1)
	for _, e := range entries {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}
