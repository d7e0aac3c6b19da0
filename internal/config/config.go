package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harun/fiftplay/pkg/mirror"
	"github.com/harun/fiftplay/pkg/snippets"
)

// Config represents the main fiftplay configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Snippet sharing
	Snippets SnippetsConfig `json:"snippets" mapstructure:"snippets"`

	// Directory mirroring
	Mirror MirrorConfig `json:"mirror" mapstructure:"mirror"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Request tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Host              string   `json:"host" mapstructure:"host"`
	Port              int      `json:"port" mapstructure:"port"`
	AllowedOrigins    []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	RequestsPerMinute int      `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	ShowOutput        bool     `json:"show_output" mapstructure:"show_output"`
}

// SnippetsConfig holds shared snippet storage configuration
type SnippetsConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	DBPath        string `json:"db_path" mapstructure:"db_path"`
	TTL           string `json:"ttl" mapstructure:"ttl"` // duration, empty keeps snippets forever
	PurgeSchedule string `json:"purge_schedule" mapstructure:"purge_schedule"`
	CacheSize     int    `json:"cache_size" mapstructure:"cache_size"`
}

// MirrorConfig holds directory mirror configuration
type MirrorConfig struct {
	StabilityThresholdMs int `json:"stability_threshold_ms" mapstructure:"stability_threshold_ms"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"` // 0..1
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Host:              "127.0.0.1",
			Port:              8787,
			AllowedOrigins:    []string{},
			RequestsPerMinute: 1200,
			ShowOutput:        true,
		},
		Snippets: SnippetsConfig{
			Enabled:       true,
			TTL:           "720h",
			PurgeSchedule: snippets.DefaultPurgeSchedule,
			CacheSize:     snippets.DefaultCacheSize,
		},
		Mirror: MirrorConfig{
			StabilityThresholdMs: int(mirror.DefaultStabilityThreshold / time.Millisecond),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     true,
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SnippetTTL parses the snippet TTL. Zero means snippets never expire.
func (c *Config) SnippetTTL() (time.Duration, error) {
	if c.Snippets.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.Snippets.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid snippets ttl %q: %w", c.Snippets.TTL, err)
	}
	return ttl, nil
}

// StabilityThreshold returns the mirror debounce window
func (c *Config) StabilityThreshold() time.Duration {
	return time.Duration(c.Mirror.StabilityThresholdMs) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
