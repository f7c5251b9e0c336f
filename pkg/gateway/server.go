package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meridian-gw/meridian/pkg/breaker"
	"github.com/meridian-gw/meridian/pkg/providers"
	"github.com/meridian-gw/meridian/pkg/router"
)

// Server is the gateway's HTTP front end. It accepts chat completion
// requests, hands them to the routing engine, and serves the operational
// endpoints (health, stats, metrics).
type Server struct {
	gw         *Gateway
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server around a gateway. The listen address and
// timeouts come from the gateway's active configuration.
func NewServer(gw *Gateway) *Server {
	s := &Server{
		gw:     gw,
		logger: slog.Default().With("component", "server"),
	}

	cfg := gw.Config()
	s.httpServer = &http.Server{
		Addr:           cfg.Server.ListenAddress,
		Handler:        s.routes(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleCompletion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	cfg := s.gw.Config()
	if s.gw.MetricsEnabled() {
		mux.Handle("GET "+cfg.Metrics.Path, s.gw.Collector().Handler())
	}
	return mux
}

// Start serves until the context is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.gw.Config().Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gateway server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// completionRequest is the minimal envelope the gateway itself needs from
// the body; the rest passes through to the provider untouched.
type completionRequest struct {
	Model string `json:"model"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var cr completionRequest
	if err := json.Unmarshal(body, &cr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}
	if cr.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "model is required")
		return
	}

	req := &providers.Request{
		RequestID:         r.Header.Get("X-Request-ID"),
		Model:             cr.Model,
		Payload:           body,
		PreferredProvider: r.Header.Get("X-Preferred-Provider"),
	}

	resp, err := s.gw.Route(r.Context(), req)
	if err != nil {
		s.writeRouteError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", req.RequestID)
	w.Header().Set("X-Served-By", resp.Provider)
	w.Write(resp.Payload)
}

// writeRouteError maps routing errors onto HTTP statuses:
//
//	unknown model          -> 404
//	no healthy providers   -> 503
//	all providers failed   -> 502
//	deadline exceeded      -> 504
//	request rejected       -> 400
func (s *Server) writeRouteError(w http.ResponseWriter, req *providers.Request, err error) {
	w.Header().Set("X-Request-ID", req.RequestID)

	var pre *router.ProviderRequestError
	switch {
	case errors.Is(err, router.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "model_not_found", err.Error())
	case errors.Is(err, router.ErrNoHealthyProviders):
		writeError(w, http.StatusServiceUnavailable, "no_healthy_providers", err.Error())
	case errors.Is(err, router.ErrRequestTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, router.ErrAllProvidersFailed):
		writeError(w, http.StatusBadGateway, "all_providers_failed", err.Error())
	case errors.As(err, &pre):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("unexpected routing error", "request_id", req.RequestID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// providerHealth is one provider's entry in the health response.
type providerHealth struct {
	State               string        `json:"state"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	InFlight            int64         `json:"in_flight"`
	Latency             time.Duration `json:"latency_ns"`
	Models              []string      `json:"models"`

	// Probe is the latest scheduled-probe result, omitted until the
	// provider has been probed.
	Probe string `json:"probe,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := s.gw.Registry()
	probes := s.gw.ProbeStatus()
	out := make(map[string]providerHealth, reg.Len())
	allOpen := reg.Len() > 0

	for _, name := range reg.Names() {
		entry := reg.Get(name)
		if entry == nil {
			continue
		}
		h := entry.Breaker.Health()
		if h.State != breaker.StateOpen {
			allOpen = false
		}
		ph := providerHealth{
			State:               h.State.String(),
			ConsecutiveFailures: h.ConsecutiveFailures,
			InFlight:            h.InFlight,
			Latency:             h.Latency,
			Models:              entry.Provider.Models(),
		}
		if status, ok := probes[name]; ok {
			ph.Probe = status.String()
		}
		out[name] = ph
	}

	status := http.StatusOK
	if allOpen {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":    statusLabel(status),
		"providers": out,
	})
}

func statusLabel(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.Router().GetStats())
}

// maxBodyBytes caps accepted request bodies at 10MB.
const maxBodyBytes = 10 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	var resp errorResponse
	resp.Error.Type = errType
	resp.Error.Message = message
	writeJSON(w, status, resp)
}
