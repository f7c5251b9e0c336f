package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Provider defaults
	DefaultProviderWeight = 1

	// Routing defaults
	DefaultRoutingStrategy = "round-robin"
	DefaultDeadline        = 60 * time.Second

	// Retry defaults
	DefaultRetryMaxAttempts    = 3
	DefaultRetryBaseDelay      = 100 * time.Millisecond
	DefaultRetryMaxDelay       = 2 * time.Second
	DefaultRetryMultiplier     = 2.0
	DefaultRetryJitterFraction = 0.2

	// Breaker defaults
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerSuccessThreshold = 2
	DefaultBreakerOpenTimeout      = 30 * time.Second

	// Health check defaults
	DefaultHealthCheckEnabled       = true
	DefaultHealthCheckSchedule      = "@every 30s"
	DefaultHealthCheckTimeout       = 10 * time.Second
	DefaultHealthCheckLatencyBudget = 2 * time.Second

	// Metrics defaults
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"

	// History defaults
	DefaultHistoryEnabled       = false
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryBufferSize    = 1000
	DefaultHistoryRetentionDays = 30
	DefaultHistoryPruneSchedule = "0 3 * * *"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place. Boolean fields that default to true
// cannot be distinguished from an explicit false after unmarshalling, so they
// are handled by NewDefaultConfig seeding before parse.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Providers
	for name, p := range cfg.Providers {
		if p.Weight == 0 {
			p.Weight = DefaultProviderWeight
		}
		if p.Breaker != nil {
			applyBreakerDefaults(p.Breaker)
		}
		if p.Retry != nil {
			applyRetryDefaults(p.Retry)
		}
		cfg.Providers[name] = p
	}

	// Routing
	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = DefaultRoutingStrategy
	}
	if cfg.Routing.DefaultDeadline == 0 {
		cfg.Routing.DefaultDeadline = DefaultDeadline
	}

	applyRetryDefaults(&cfg.Retry)
	applyBreakerDefaults(&cfg.Breaker)

	// Health check
	if cfg.HealthCheck.Schedule == "" {
		cfg.HealthCheck.Schedule = DefaultHealthCheckSchedule
	}
	if cfg.HealthCheck.Timeout == 0 {
		cfg.HealthCheck.Timeout = DefaultHealthCheckTimeout
	}
	if cfg.HealthCheck.LatencyBudget == 0 {
		cfg.HealthCheck.LatencyBudget = DefaultHealthCheckLatencyBudget
	}

	// Metrics
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// History
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.BufferSize == 0 {
		cfg.History.BufferSize = DefaultHistoryBufferSize
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = DefaultHistoryRetentionDays
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}
}

func applyRetryDefaults(r *RetryConfig) {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultRetryMaxAttempts
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = DefaultRetryBaseDelay
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = DefaultRetryMaxDelay
	}
	if r.Multiplier == 0 {
		r.Multiplier = DefaultRetryMultiplier
	}
	if r.JitterFraction == 0 {
		r.JitterFraction = DefaultRetryJitterFraction
	}
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.FailureThreshold == 0 {
		b.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if b.SuccessThreshold == 0 {
		b.SuccessThreshold = DefaultBreakerSuccessThreshold
	}
	if b.OpenTimeout == 0 {
		b.OpenTimeout = DefaultBreakerOpenTimeout
	}
}

// NewDefaultConfig returns a configuration with every field set to its
// default value. Fields whose defaults are true are seeded here so a YAML
// file can still set them to false explicitly.
func NewDefaultConfig() *Config {
	cfg := &Config{
		HealthCheck: HealthCheckConfig{Enabled: DefaultHealthCheckEnabled},
		Metrics:     MetricsConfig{Enabled: DefaultMetricsEnabled},
		History:     HistoryConfig{Enabled: DefaultHistoryEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}
