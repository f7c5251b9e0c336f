package testutil

import (
	"context"
	"sync/atomic"

	"github.com/meridian-gw/meridian/pkg/providers"
)

// MockProvider is a scriptable implementation of the Provider interface for
// testing the routing engine without network I/O.
type MockProvider struct {
	name    string
	models  []string
	weight  int
	cost    float64
	calls   atomic.Int64
	healthy atomic.Bool

	// InvokeFunc overrides Invoke when set.
	InvokeFunc func(ctx context.Context, req *providers.Request) (*providers.Response, error)

	// HealthCheckFunc overrides HealthCheck when set.
	HealthCheckFunc func(ctx context.Context) error
}

// NewMockProvider creates a healthy mock provider serving the given models.
func NewMockProvider(name string, models ...string) *MockProvider {
	m := &MockProvider{
		name:   name,
		models: models,
		weight: 1,
	}
	m.healthy.Store(true)
	return m
}

// WithWeight sets the static routing weight.
func (m *MockProvider) WithWeight(w int) *MockProvider {
	m.weight = w
	return m
}

// WithCost sets the static cost per million tokens.
func (m *MockProvider) WithCost(c float64) *MockProvider {
	m.cost = c
	return m
}

// SetHealthy controls the result of HealthCheck.
func (m *MockProvider) SetHealthy(healthy bool) {
	m.healthy.Store(healthy)
}

// Calls returns how many times Invoke was called.
func (m *MockProvider) Calls() int64 {
	return m.calls.Load()
}

// Invoke runs InvokeFunc, or returns a canned success.
func (m *MockProvider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	m.calls.Add(1)
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return &providers.Response{Provider: m.name, Model: req.Model}, nil
}

// HealthCheck runs HealthCheckFunc, or reports the scripted health status.
func (m *MockProvider) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	if !m.healthy.Load() {
		return providers.NewRetryableError(m.name, "mock provider unhealthy", nil)
	}
	return nil
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return m.name }

// Type returns "mock".
func (m *MockProvider) Type() string { return "mock" }

// Models returns the served model identifiers.
func (m *MockProvider) Models() []string { return m.models }

// Weight returns the static routing weight.
func (m *MockProvider) Weight() int { return m.weight }

// CostPerMToken returns the static cost per million tokens.
func (m *MockProvider) CostPerMToken() float64 { return m.cost }

// Close is a no-op.
func (m *MockProvider) Close() error { return nil }
