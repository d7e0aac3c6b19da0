package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if slices.Contains(validLogLevels, level) {
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLogLevels, ", "))
}

// ValidatePort validates a listen port. Zero picks a free port.
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("gateway port must be between 0 and 65535, got %d", port)
	}
	return nil
}

// ValidateOrigin validates an allowed websocket origin
func (v *Validator) ValidateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid allowed origin: %q", origin)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("allowed origin %q must not have a path", origin)
	}
	return nil
}

// ValidateTTL validates a snippet TTL duration string
func (v *Validator) ValidateTTL(ttl string) error {
	if ttl == "" {
		return nil
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return fmt.Errorf("invalid snippets ttl %q: %w", ttl, err)
	}
	if d < 0 {
		return fmt.Errorf("snippets ttl must not be negative, got %s", ttl)
	}
	return nil
}

// ValidateSchedule validates a cron spec or descriptor such as "@hourly"
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		errors = append(errors, err)
	}
	for _, origin := range cfg.Gateway.AllowedOrigins {
		if err := v.ValidateOrigin(origin); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Gateway.RequestsPerMinute < 0 {
		errors = append(errors, fmt.Errorf("gateway.requests_per_minute must be >= 0"))
	}

	if cfg.Snippets.Enabled {
		if err := v.ValidateTTL(cfg.Snippets.TTL); err != nil {
			errors = append(errors, err)
		}
		if err := v.ValidateSchedule(cfg.Snippets.PurgeSchedule); err != nil {
			errors = append(errors, err)
		}
		if cfg.Snippets.CacheSize < 0 {
			errors = append(errors, fmt.Errorf("snippets.cache_size must be >= 0"))
		}
	}

	if cfg.Mirror.StabilityThresholdMs < 0 {
		errors = append(errors, fmt.Errorf("mirror.stability_threshold_ms must be >= 0"))
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", cfg.Tracing.SampleRatio))
	}

	return errors
}
