package config

import "time"

// Config is the root configuration structure for Meridian. It contains all
// configuration sections for the gateway server, providers, routing engine,
// retry and breaker policies, health checking, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Providers contains configuration for all backend provider
	// integrations. Keys are provider names (e.g., "openai", "anthropic").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Routing contains configuration for candidate resolution and the
	// balancing strategy, including the routing rule set.
	Routing RoutingConfig `yaml:"routing"`

	// Retry contains the default per-provider retry policy. Individual
	// providers may override it.
	Retry RetryConfig `yaml:"retry"`

	// Breaker contains the default circuit breaker thresholds. Individual
	// providers may override them.
	Breaker BreakerConfig `yaml:"breaker"`

	// HealthCheck contains configuration for scheduled provider probes.
	HealthCheck HealthCheckConfig `yaml:"health_check"`

	// Metrics contains Prometheus metrics exposition configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// History contains configuration for the persistent attempt log.
	History HistoryConfig `yaml:"history"`
}

// ServerConfig contains configuration for the gateway HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// ProviderConfig contains configuration for a single backend provider.
type ProviderConfig struct {
	// Type selects the provider adapter: "openai", "anthropic", or
	// "generic".
	Type string `yaml:"type"`

	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the provider API
	// key. The key itself never appears in configuration files.
	APIKeyEnv string `yaml:"api_key_env"`

	// Models lists the model identifiers this provider serves.
	Models []string `yaml:"models"`

	// Weight is the static routing weight used by the weighted-random
	// strategy. Providers with zero weight are drawn uniformly.
	// Default: 1
	Weight int `yaml:"weight"`

	// CostPerMToken is the provider's cost per million tokens, used by
	// the cost-optimized strategy.
	CostPerMToken float64 `yaml:"cost_per_mtoken"`

	// Timeout is the per-attempt request timeout against this provider.
	// Zero falls back to the retry policy's attempt timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Headers contains extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers"`

	// Breaker overrides the default circuit breaker thresholds for this
	// provider. Nil inherits the top-level breaker section.
	Breaker *BreakerConfig `yaml:"breaker"`

	// Retry overrides the default retry policy for this provider. Nil
	// inherits the top-level retry section.
	Retry *RetryConfig `yaml:"retry"`
}

// RoutingConfig contains configuration for the routing engine.
type RoutingConfig struct {
	// Strategy selects the balancing strategy: "round-robin",
	// "least-latency", "least-connections", "cost-optimized", or
	// "weighted-random".
	// Default: "round-robin"
	Strategy string `yaml:"strategy"`

	// DefaultDeadline is the overall wall-clock budget applied to
	// requests that carry none. It bounds all retries and fail-overs.
	// Default: 60s
	DefaultDeadline time.Duration `yaml:"default_deadline"`

	// LatencyFloor excludes providers whose observed latency exceeds it
	// from cost-optimized selection. Zero disables the floor.
	LatencyFloor time.Duration `yaml:"latency_floor"`

	// Rules is the ordered routing rule set. Rules are evaluated in
	// priority order; the first match supplies the candidate chain.
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is a single routing rule.
type RuleConfig struct {
	// Name identifies the rule in logs and validation errors.
	Name string `yaml:"name"`

	// Priority orders evaluation; lower values are evaluated first.
	Priority int `yaml:"priority"`

	// Model is a glob pattern matched against the request model
	// (e.g., "gpt-4*").
	Model string `yaml:"model"`

	// Provider is the provider matching requests are routed to.
	Provider string `yaml:"provider"`

	// Fallbacks is the ordered fallback chain tried after Provider.
	Fallbacks []string `yaml:"fallbacks"`
}

// RetryConfig contains retry policy configuration.
type RetryConfig struct {
	// MaxAttempts is the maximum number of calls to one provider per
	// request, including the first.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the backoff before the first retry.
	// Default: 100ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the exponential backoff.
	// Default: 2s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the exponential growth factor between retries.
	// Default: 2.0
	Multiplier float64 `yaml:"multiplier"`

	// JitterFraction randomizes each delay within ±fraction.
	// Default: 0.2
	JitterFraction float64 `yaml:"jitter_fraction"`

	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt bound; the overall request deadline still applies.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// BreakerConfig contains circuit breaker threshold configuration.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that trips the
	// breaker open.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// SuccessThreshold is the consecutive probe success count that closes
	// a half-open breaker.
	// Default: 2
	SuccessThreshold int `yaml:"success_threshold"`

	// OpenTimeout is how long an open breaker rejects calls before
	// admitting a probe.
	// Default: 30s
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// HealthCheckConfig contains scheduled provider probe configuration.
type HealthCheckConfig struct {
	// Enabled controls whether scheduled probes run.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is the probe schedule in cron syntax. Descriptors such as
	// "@every 30s" are accepted.
	// Default: "@every 30s"
	Schedule string `yaml:"schedule"`

	// Timeout bounds each individual probe.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// LatencyBudget is the probe duration above which a succeeding
	// provider is reported degraded.
	// Default: 2s
	LatencyBudget time.Duration `yaml:"latency_budget"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path metrics are served on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// HistoryConfig contains persistent attempt log configuration.
type HistoryConfig struct {
	// Enabled controls whether attempts are recorded to SQLite.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// BufferSize is the async recorder channel capacity. Attempts are
	// dropped, with a counter, when the buffer is full.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// RetentionDays is how long attempt records are kept before pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the retention pruning schedule in cron syntax.
	// Default: "0 3 * * *" (daily at 03:00)
	PruneSchedule string `yaml:"prune_schedule"`
}
