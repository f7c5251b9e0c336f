package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Provider is the core interface that all LLM provider adapters must implement.
// It provides a unified abstraction over interchangeable backends (OpenAI,
// Anthropic, local models, etc.) so the routing engine never depends on a
// concrete provider type.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return immediately when
// the context is cancelled.
type Provider interface {
	// Invoke sends the canonical request to the backend and returns the
	// canonical response. Errors must be pre-classified by the adapter into
	// the wire-neutral taxonomy (see CallError); the routing engine never
	// parses provider-specific error bodies.
	Invoke(ctx context.Context, req *Request) (*Response, error)

	// HealthCheck performs a lightweight probe against the provider.
	// Returns nil if the provider is reachable and responding.
	HealthCheck(ctx context.Context) error

	// Name returns the provider's configured name (e.g. "openai-primary").
	Name() string

	// Type returns the adapter type (e.g. "openai", "anthropic", "generic").
	Type() string

	// Models returns the model identifiers this provider serves.
	Models() []string

	// Weight returns the static routing weight (higher = more traffic).
	Weight() int

	// CostPerMToken returns the static cost per million tokens, used by the
	// cost-optimized balancing strategy. Zero means unknown.
	CostPerMToken() float64

	// Close releases any resources held by the adapter (HTTP connections,
	// etc.). After Close the provider must not be used.
	Close() error
}

// Request is the provider-agnostic representation of a chat/completion
// request. The payload is carried opaquely; the routing engine only inspects
// the model, deadline, and routing hints.
type Request struct {
	// RequestID uniquely identifies the request. Assigned by the router if
	// empty.
	RequestID string

	// Model is the requested model identifier (e.g. "gpt-4o").
	Model string

	// Payload is the raw request body, passed through to the adapter.
	Payload json.RawMessage

	// Deadline is the overall wall-clock budget for the request across all
	// retries and fail-overs. Zero means use the configured default.
	Deadline time.Duration

	// PreferredProvider is an explicit provider override (optional).
	PreferredProvider string
}

// Response is the provider-agnostic representation of a completion response.
type Response struct {
	// Provider is the name of the provider that produced the response.
	Provider string

	// Model is the model that served the request.
	Model string

	// Payload is the raw response body from the adapter.
	Payload json.RawMessage

	// TokensUsed is the total token count reported by the backend, if any.
	TokensUsed int

	// Latency is the duration of the successful provider call.
	Latency time.Duration
}
