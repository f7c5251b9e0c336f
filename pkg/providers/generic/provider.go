package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridian-gw/meridian/pkg/providers"
)

// Default endpoint paths, overridable per provider.
const (
	DefaultInvokePath = "/chat/completions"
	DefaultHealthPath = "/models"
)

// AuthStyle selects how the API key is attached to requests.
type AuthStyle string

const (
	// AuthBearer sends "Authorization: Bearer <key>" (OpenAI style).
	AuthBearer AuthStyle = "bearer"

	// AuthAPIKeyHeader sends "x-api-key: <key>" (Anthropic style).
	AuthAPIKeyHeader AuthStyle = "x-api-key"
)

// Config describes an HTTP backend.
type Config struct {
	// Name is the provider's unique name.
	Name string

	// Type is the adapter type label reported by Type().
	Type string

	// BaseURL is the API base, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is the credential attached per AuthStyle. Empty sends no
	// credential.
	APIKey string

	// Auth selects the credential header style. Defaults to AuthBearer.
	Auth AuthStyle

	// InvokePath is the completion endpoint path. Defaults to
	// DefaultInvokePath.
	InvokePath string

	// HealthPath is the endpoint probed by HealthCheck. Defaults to
	// DefaultHealthPath.
	HealthPath string

	// Headers contains extra headers sent with every request.
	Headers map[string]string

	// Models lists the model identifiers this provider serves.
	Models []string

	// Weight is the static routing weight.
	Weight int

	// CostPerMToken is the cost per million tokens.
	CostPerMToken float64

	// Timeout bounds each HTTP call. Zero relies on the caller's context.
	Timeout time.Duration
}

// Provider is an HTTP adapter for OpenAI-compatible backends. It performs a
// single call per Invoke; retries, fail-over, and circuit breaking happen
// above it.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New creates an HTTP provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("generic: provider name cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("generic: base URL cannot be empty")
	}
	if cfg.Type == "" {
		cfg.Type = "generic"
	}
	if cfg.Auth == "" {
		cfg.Auth = AuthBearer
	}
	if cfg.InvokePath == "" {
		cfg.InvokePath = DefaultInvokePath
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Provider{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

// usageEnvelope extracts the token count from an OpenAI-compatible response
// body without constraining the rest of its shape.
type usageEnvelope struct {
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke posts the request payload to the completion endpoint and returns
// the raw response body. HTTP status codes are classified so the retry layer
// can distinguish provider faults from request faults.
func (p *Provider) Invoke(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+p.cfg.InvokePath, bytes.NewReader(req.Payload))
	if err != nil {
		return nil, providers.NewNonRetryableError(p.cfg.Name, "failed to build request", err)
	}
	p.setHeaders(httpReq)

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, p.classifyTransportError(ctx, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewRetryableError(p.cfg.Name, "failed to read response body", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, p.classifyStatus(httpResp.StatusCode, body)
	}

	var usage usageEnvelope
	// Token usage is best-effort; a body that does not parse still counts
	// as a successful call.
	_ = json.Unmarshal(body, &usage)

	return &providers.Response{
		Provider:   p.cfg.Name,
		Model:      req.Model,
		Payload:    body,
		TokensUsed: usage.Usage.TotalTokens,
		Latency:    time.Since(start),
	}, nil
}

// HealthCheck probes the health endpoint. Any response proves the backend is
// reachable and serving; only transport failures and server errors count
// against it.
func (p *Provider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+p.cfg.HealthPath, nil)
	if err != nil {
		return providers.NewNonRetryableError(p.cfg.Name, "failed to build health request", err)
	}
	p.setHeaders(httpReq)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return p.classifyTransportError(ctx, err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return providers.NewRetryableError(p.cfg.Name,
			fmt.Sprintf("health endpoint returned %d", httpResp.StatusCode), nil)
	}
	return nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		switch p.cfg.Auth {
		case AuthAPIKeyHeader:
			req.Header.Set("x-api-key", p.cfg.APIKey)
		default:
			req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
		}
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// classifyTransportError maps a client error onto a call error kind. A
// deadline that expired is a timeout; everything else at the transport layer
// is retryable.
func (p *Provider) classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return providers.NewTimeoutError(p.cfg.Name, "request timed out", err)
	}
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return providers.NewRetryableError(p.cfg.Name, "transport error", err)
}

// classifyStatus maps an HTTP status onto a call error kind:
//
//	429 and 5xx  -> retryable (provider fault or pressure)
//	408          -> timeout
//	other 4xx    -> non-retryable (request fault)
func (p *Provider) classifyStatus(status int, body []byte) error {
	var kind providers.ErrorKind
	switch {
	case status == http.StatusTooManyRequests:
		kind = providers.KindRetryable
	case status == http.StatusRequestTimeout:
		kind = providers.KindTimeout
	case status >= http.StatusInternalServerError:
		kind = providers.KindRetryable
	default:
		kind = providers.KindNonRetryable
	}
	return &providers.CallError{
		Provider:   p.cfg.Name,
		Kind:       kind,
		StatusCode: status,
		Message:    truncate(body, 200),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.Name }

// Type returns the adapter type label.
func (p *Provider) Type() string { return p.cfg.Type }

// Models returns the served model identifiers.
func (p *Provider) Models() []string { return p.cfg.Models }

// Weight returns the static routing weight.
func (p *Provider) Weight() int { return p.cfg.Weight }

// CostPerMToken returns the cost per million tokens.
func (p *Provider) CostPerMToken() float64 { return p.cfg.CostPerMToken }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
