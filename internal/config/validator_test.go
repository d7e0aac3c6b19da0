package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			assert.NoError(t, v.ValidateLogLevel(level))
		})
	}

	t.Run("invalid", func(t *testing.T) {
		assert.Error(t, v.ValidateLogLevel("trace"))
	})
}

func TestValidatePort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(0))
	assert.NoError(t, v.ValidatePort(8787))
	assert.Error(t, v.ValidatePort(-1))
	assert.Error(t, v.ValidatePort(65536))
}

func TestValidateOrigin(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		origin string
		valid  bool
	}{
		{"*", true},
		{"https://play.example", true},
		{"http://localhost:5173", true},
		{"localhost", false},
		{"https://play.example/editor", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			err := v.ValidateOrigin(tt.origin)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateTTL(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTTL(""))
	assert.NoError(t, v.ValidateTTL("24h"))
	assert.Error(t, v.ValidateTTL("-1h"))
	assert.Error(t, v.ValidateTTL("a week"))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule(""))
	assert.NoError(t, v.ValidateSchedule("@hourly"))
	assert.NoError(t, v.ValidateSchedule("*/15 * * * *"))
	assert.Error(t, v.ValidateSchedule("hourly"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.MaxSize = -1
		cfg.Gateway.RequestsPerMinute = -5
		cfg.Snippets.CacheSize = -1

		assert.Len(t, v.ValidateConfig(cfg), 3)
	})

	t.Run("sample ratio out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracing.SampleRatio = 1.5

		errs := v.ValidateConfig(cfg)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "tracing.sample_ratio")
	})
}
