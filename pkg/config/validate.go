package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/meridian-gw/meridian/pkg/balancer"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access to
// all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All errors are collected and returned
// together so a bad file can be fixed in one pass.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRouting(&cfg.Routing, cfg.Providers)...)
	errs = append(errs, validateRetry("retry", &cfg.Retry)...)
	errs = append(errs, validateBreaker("breaker", &cfg.Breaker)...)
	errs = append(errs, validateHealthCheck(&cfg.HealthCheck)...)
	errs = append(errs, validateHistory(&cfg.History)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Level),
		})
	}
	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Format),
		})
	}
	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError
	for name, p := range providers {
		field := func(f string) string { return fmt.Sprintf("providers.%s.%s", name, f) }

		switch p.Type {
		case "openai", "anthropic", "generic":
		default:
			errs = append(errs, FieldError{
				Field:   field("type"),
				Message: fmt.Sprintf("invalid type %q (must be openai, anthropic, or generic)", p.Type),
			})
		}
		if p.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field("base_url"),
				Message: fmt.Sprintf("invalid URL %q", p.BaseURL),
			})
		}
		if len(p.Models) == 0 {
			errs = append(errs, FieldError{
				Field:   field("models"),
				Message: "at least one model is required",
			})
		}
		if p.Weight < 0 {
			errs = append(errs, FieldError{
				Field:   field("weight"),
				Message: "must not be negative",
			})
		}
		if p.CostPerMToken < 0 {
			errs = append(errs, FieldError{
				Field:   field("cost_per_mtoken"),
				Message: "must not be negative",
			})
		}
		if p.Breaker != nil {
			errs = append(errs, validateBreaker(field("breaker"), p.Breaker)...)
		}
		if p.Retry != nil {
			errs = append(errs, validateRetry(field("retry"), p.Retry)...)
		}
	}
	return errs
}

func validateRouting(cfg *RoutingConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	valid := false
	for _, name := range balancer.Names() {
		if cfg.Strategy == name {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, FieldError{
			Field: "routing.strategy",
			Message: fmt.Sprintf("unknown strategy %q (must be one of: %s)",
				cfg.Strategy, strings.Join(balancer.Names(), ", ")),
		})
	}
	if cfg.DefaultDeadline <= 0 {
		errs = append(errs, FieldError{
			Field:   "routing.default_deadline",
			Message: "must be positive",
		})
	}
	if cfg.LatencyFloor < 0 {
		errs = append(errs, FieldError{
			Field:   "routing.latency_floor",
			Message: "must not be negative",
		})
	}

	seen := make(map[string]bool, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		field := func(f string) string { return fmt.Sprintf("routing.rules[%d].%s", i, f) }

		if rule.Name == "" {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: "rule name is required",
			})
		} else if seen[rule.Name] {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: fmt.Sprintf("duplicate rule name %q", rule.Name),
			})
		}
		seen[rule.Name] = true

		if rule.Model == "" {
			errs = append(errs, FieldError{
				Field:   field("model"),
				Message: "model pattern is required",
			})
		} else if _, err := path.Match(rule.Model, ""); err != nil {
			errs = append(errs, FieldError{
				Field:   field("model"),
				Message: fmt.Sprintf("malformed glob pattern %q", rule.Model),
			})
		}

		if rule.Provider == "" {
			errs = append(errs, FieldError{
				Field:   field("provider"),
				Message: "provider is required",
			})
		} else if _, ok := providers[rule.Provider]; !ok {
			errs = append(errs, FieldError{
				Field:   field("provider"),
				Message: fmt.Sprintf("references unknown provider %q", rule.Provider),
			})
		}
		for j, fb := range rule.Fallbacks {
			if _, ok := providers[fb]; !ok {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("routing.rules[%d].fallbacks[%d]", i, j),
					Message: fmt.Sprintf("references unknown provider %q", fb),
				})
			}
		}
	}
	return errs
}

func validateRetry(field string, cfg *RetryConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{
			Field:   field + ".max_attempts",
			Message: "must be at least 1",
		})
	}
	if cfg.BaseDelay < 0 {
		errs = append(errs, FieldError{
			Field:   field + ".base_delay",
			Message: "must not be negative",
		})
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		errs = append(errs, FieldError{
			Field:   field + ".max_delay",
			Message: "must not be less than base_delay",
		})
	}
	if cfg.Multiplier < 1 {
		errs = append(errs, FieldError{
			Field:   field + ".multiplier",
			Message: "must be at least 1",
		})
	}
	if cfg.JitterFraction < 0 || cfg.JitterFraction >= 1 {
		errs = append(errs, FieldError{
			Field:   field + ".jitter_fraction",
			Message: "must be in [0, 1)",
		})
	}
	if cfg.AttemptTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   field + ".attempt_timeout",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateBreaker(field string, cfg *BreakerConfig) []FieldError {
	var errs []FieldError
	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   field + ".failure_threshold",
			Message: "must be at least 1",
		})
	}
	if cfg.SuccessThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   field + ".success_threshold",
			Message: "must be at least 1",
		})
	}
	if cfg.OpenTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   field + ".open_timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateHealthCheck(cfg *HealthCheckConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "health_check.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "health_check.timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "database path is required",
		})
	}
	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{
			Field:   "history.buffer_size",
			Message: "must be at least 1",
		})
	}
	if cfg.RetentionDays < 1 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "must be at least 1",
		})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "history.prune_schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.PruneSchedule, err),
		})
	}
	return errs
}
