package generic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridian-gw/meridian/pkg/providers"
)

func newTestProvider(t *testing.T, srv *httptest.Server, mutate func(*Config)) *Provider {
	t.Helper()
	cfg := Config{
		Name:    "test-backend",
		BaseURL: srv.URL,
		APIKey:  "sk-test",
		Models:  []string{"test-model"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestInvokeSuccess(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, nil)
	resp, err := p.Invoke(context.Background(), &providers.Request{
		Model:   "test-model",
		Payload: []byte(`{"model":"test-model"}`),
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if resp.TokensUsed != 42 {
		t.Errorf("tokens = %d, want 42", resp.TokensUsed)
	}
	if resp.Provider != "test-backend" {
		t.Errorf("provider = %s, want test-backend", resp.Provider)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q, want bearer credential", gotAuth)
	}
	if gotPath != DefaultInvokePath {
		t.Errorf("path = %q, want %q", gotPath, DefaultInvokePath)
	}
}

func TestInvokeAnthropicAuthStyle(t *testing.T) {
	var gotKey, gotBearer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotBearer = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, func(c *Config) { c.Auth = AuthAPIKeyHeader })
	if _, err := p.Invoke(context.Background(), &providers.Request{Model: "m", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if gotKey != "sk-test" {
		t.Errorf("x-api-key = %q, want sk-test", gotKey)
	}
	if gotBearer != "" {
		t.Errorf("Authorization = %q, want empty", gotBearer)
	}
}

func TestInvokeStatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind providers.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, providers.KindRetryable},
		{"server error", http.StatusInternalServerError, providers.KindRetryable},
		{"bad gateway", http.StatusBadGateway, providers.KindRetryable},
		{"request timeout", http.StatusRequestTimeout, providers.KindTimeout},
		{"bad request", http.StatusBadRequest, providers.KindNonRetryable},
		{"unauthorized", http.StatusUnauthorized, providers.KindNonRetryable},
		{"not found", http.StatusNotFound, providers.KindNonRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			p := newTestProvider(t, srv, nil)
			_, err := p.Invoke(context.Background(), &providers.Request{Model: "m", Payload: []byte(`{}`)})
			if err == nil {
				t.Fatalf("Invoke() with status %d should fail", tt.status)
			}
			var ce *providers.CallError
			if !errors.As(err, &ce) {
				t.Fatalf("error = %v (%T), want *CallError", err, err)
			}
			if ce.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", ce.Kind, tt.wantKind)
			}
			if ce.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", ce.StatusCode, tt.status)
			}
		})
	}
}

func TestInvokeDeadlineBecomesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Invoke(ctx, &providers.Request{Model: "m", Payload: []byte(`{}`)})
	var ce *providers.CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v (%T), want *CallError", err, err)
	}
	if ce.Kind != providers.KindTimeout {
		t.Errorf("kind = %v, want timeout", ce.Kind)
	}
}

func TestInvokeCancelPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Invoke(ctx, &providers.Request{Model: "m", Payload: []byte(`{}`)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled passed through", err)
	}
}

func TestInvokeTransportErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := newTestProvider(t, srv, nil)
	_, err := p.Invoke(context.Background(), &providers.Request{Model: "m", Payload: []byte(`{}`)})
	var ce *providers.CallError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v (%T), want *CallError", err, err)
	}
	if ce.Kind != providers.KindRetryable {
		t.Errorf("kind = %v, want retryable", ce.Kind)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		healthy bool
	}{
		{"ok", http.StatusOK, true},
		{"auth required still reachable", http.StatusUnauthorized, true},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := newTestProvider(t, srv, nil)
			err := p.HealthCheck(context.Background())
			if tt.healthy && err != nil {
				t.Errorf("HealthCheck() error = %v, want nil", err)
			}
			if !tt.healthy && err == nil {
				t.Error("HealthCheck() should fail on server error")
			}
			if gotPath != DefaultHealthPath {
				t.Errorf("path = %q, want %q", gotPath, DefaultHealthPath)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://x"}); err == nil {
		t.Error("New() without a name should fail")
	}
	if _, err := New(Config{Name: "x"}); err == nil {
		t.Error("New() without a base URL should fail")
	}
}
