package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file at the specified path. It applies
// default values, validates the configuration, and returns any errors. The
// configuration is not modified by environment variables; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML configuration bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	// Seed true-by-default booleans before unmarshalling so an absent key
	// keeps the default while an explicit "false" sticks.
	cfg := &Config{
		HealthCheck: HealthCheckConfig{Enabled: DefaultHealthCheckEnabled},
		Metrics:     MetricsConfig{Enabled: DefaultMetricsEnabled},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MERIDIAN_SECTION_FIELD (e.g., MERIDIAN_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format MERIDIAN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString("MERIDIAN_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("MERIDIAN_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("MERIDIAN_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("MERIDIAN_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setInt("MERIDIAN_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	// Logging overrides
	setString("MERIDIAN_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("MERIDIAN_LOGGING_FORMAT", &cfg.Logging.Format)

	// Routing overrides
	setString("MERIDIAN_ROUTING_STRATEGY", &cfg.Routing.Strategy)
	setDuration("MERIDIAN_ROUTING_DEFAULT_DEADLINE", &cfg.Routing.DefaultDeadline)
	setDuration("MERIDIAN_ROUTING_LATENCY_FLOOR", &cfg.Routing.LatencyFloor)

	// Retry overrides
	setInt("MERIDIAN_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts)
	setDuration("MERIDIAN_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay)
	setDuration("MERIDIAN_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	setDuration("MERIDIAN_RETRY_ATTEMPT_TIMEOUT", &cfg.Retry.AttemptTimeout)

	// Breaker overrides
	setInt("MERIDIAN_BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold)
	setInt("MERIDIAN_BREAKER_SUCCESS_THRESHOLD", &cfg.Breaker.SuccessThreshold)
	setDuration("MERIDIAN_BREAKER_OPEN_TIMEOUT", &cfg.Breaker.OpenTimeout)

	// Health check overrides
	setBool("MERIDIAN_HEALTH_CHECK_ENABLED", &cfg.HealthCheck.Enabled)
	setString("MERIDIAN_HEALTH_CHECK_SCHEDULE", &cfg.HealthCheck.Schedule)
	setDuration("MERIDIAN_HEALTH_CHECK_TIMEOUT", &cfg.HealthCheck.Timeout)

	// Metrics overrides
	setBool("MERIDIAN_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("MERIDIAN_METRICS_PATH", &cfg.Metrics.Path)

	// History overrides
	setBool("MERIDIAN_HISTORY_ENABLED", &cfg.History.Enabled)
	setString("MERIDIAN_HISTORY_PATH", &cfg.History.Path)
	setInt("MERIDIAN_HISTORY_RETENTION_DAYS", &cfg.History.RetentionDays)

	// Per-provider base URL overrides, e.g. MERIDIAN_PROVIDER_OPENAI_BASE_URL.
	for name, p := range cfg.Providers {
		prefix := "MERIDIAN_PROVIDER_" + envKey(name)
		setString(prefix+"_BASE_URL", &p.BaseURL)
		setString(prefix+"_API_KEY_ENV", &p.APIKeyEnv)
		setDuration(prefix+"_TIMEOUT", &p.Timeout)
		cfg.Providers[name] = p
	}
}

// envKey uppercases a provider name and replaces separators so it can be
// embedded in an environment variable name.
func envKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		case c == '-' || c == '.':
			out[i] = '_'
		default:
			out[i] = c
		}
	}
	return string(out)
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
