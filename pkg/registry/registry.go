package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
)

// Entry pairs a registered provider with its health handle. Providers are
// immutable once registered and replaced wholesale on reconfiguration; the
// breaker carries all mutable per-provider state.
type Entry struct {
	// Provider is the registered provider adapter.
	Provider providers.Provider

	// Breaker is the provider's circuit breaker, created at registration.
	Breaker *breaker.Breaker
}

// Name returns the provider's name.
func (e *Entry) Name() string {
	return e.Provider.Name()
}

// index is the immutable lookup structure. Writers build a fresh index and
// swap it in; readers always see a consistent snapshot and never block.
type index struct {
	byName  map[string]*Entry
	byModel map[string][]*Entry
	names   []string // sorted, for deterministic iteration and error detail
}

// Registry holds the configured providers and their health handles, with an
// O(1) model-to-providers lookup. Lookups vastly outnumber registration
// changes: reads go through an atomic pointer to a copy-on-write index, while
// writers serialize on a mutex and publish a rebuilt index.
type Registry struct {
	mu  sync.Mutex // serializes writers
	idx atomic.Pointer[index]

	breakerOpts []breaker.Option
}

// Option configures a Registry.
type Option func(*Registry)

// WithBreakerOptions sets options applied to every breaker the registry
// creates (clock injection, transition callbacks).
func WithBreakerOptions(opts ...breaker.Option) Option {
	return func(r *Registry) { r.breakerOpts = opts }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.idx.Store(&index{
		byName:  map[string]*Entry{},
		byModel: map[string][]*Entry{},
	})
	return r
}

// Register adds a provider and creates its health state (Closed breaker, zero
// counters). Registering a name that already exists replaces the previous
// provider and discards its health state.
func (r *Registry) Register(p providers.Provider, cfg breaker.Config) (*Entry, error) {
	if p == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if p.Name() == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}

	entry := &Entry{
		Provider: p,
		Breaker:  breaker.New(p.Name(), cfg, r.breakerOpts...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.idx.Load()
	byName := make(map[string]*Entry, len(cur.byName)+1)
	for k, v := range cur.byName {
		byName[k] = v
	}
	byName[p.Name()] = entry
	r.idx.Store(rebuild(byName))

	slog.Info("provider registered",
		"provider", p.Name(),
		"type", p.Type(),
		"models", len(p.Models()),
	)
	return entry, nil
}

// Deregister removes a provider and destroys its health state. Removing an
// unknown name is a no-op.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.idx.Load()
	if _, ok := cur.byName[name]; !ok {
		return
	}
	byName := make(map[string]*Entry, len(cur.byName)-1)
	for k, v := range cur.byName {
		if k != name {
			byName[k] = v
		}
	}
	r.idx.Store(rebuild(byName))

	slog.Info("provider deregistered", "provider", name)
}

// Get returns the entry for the named provider, or nil if not registered.
func (r *Registry) Get(name string) *Entry {
	return r.idx.Load().byName[name]
}

// ProvidersForModel returns all providers serving the model, in registration
// name order. The returned slice is shared with the index snapshot and must
// not be mutated.
func (r *Registry) ProvidersForModel(model string) []*Entry {
	return r.idx.Load().byModel[model]
}

// HealthyProvidersForModel returns the providers serving the model whose
// breakers are not Open.
func (r *Registry) HealthyProvidersForModel(model string) []*Entry {
	all := r.idx.Load().byModel[model]
	healthy := make([]*Entry, 0, len(all))
	for _, e := range all {
		if e.Breaker.State() != breaker.StateOpen {
			healthy = append(healthy, e)
		}
	}
	return healthy
}

// Names returns the sorted names of all registered providers.
func (r *Registry) Names() []string {
	return r.idx.Load().names
}

// Models returns the sorted model identifiers served by at least one
// registered provider.
func (r *Registry) Models() []string {
	byModel := r.idx.Load().byModel
	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.idx.Load().byName)
}

// Close closes every registered provider and clears the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.idx.Load()
	var firstErr error
	for _, e := range cur.byName {
		if err := e.Provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.idx.Store(&index{
		byName:  map[string]*Entry{},
		byModel: map[string][]*Entry{},
	})
	return firstErr
}

// rebuild derives the model index and sorted name list from the name map.
// Per-model entry order follows sorted provider names so round-robin cursors
// key consistently across index rebuilds.
func rebuild(byName map[string]*Entry) *index {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	byModel := make(map[string][]*Entry)
	for _, name := range names {
		e := byName[name]
		for _, model := range e.Provider.Models() {
			byModel[model] = append(byModel[model], e)
		}
	}
	return &index{byName: byName, byModel: byModel, names: names}
}
