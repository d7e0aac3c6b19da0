package config

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("empty answers keep defaults", func(t *testing.T) {
		var out bytes.Buffer
		base := DefaultConfig()

		cfg, err := NewWizard(strings.NewReader("\n\n\n\n\n"), &out).Run(base)
		require.NoError(t, err)

		assert.Equal(t, base.Gateway, cfg.Gateway)
		assert.Equal(t, base.Snippets.TTL, cfg.Snippets.TTL)
		assert.True(t, cfg.Snippets.Enabled)
		assert.Contains(t, out.String(), "Listen port [8787]")
	})

	t.Run("answers are applied", func(t *testing.T) {
		var out bytes.Buffer
		input := "0.0.0.0\n9000\ny\n24h\ndebug\n"

		cfg, err := NewWizard(strings.NewReader(input), &out).Run(DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Gateway.Host)
		assert.Equal(t, 9000, cfg.Gateway.Port)
		assert.Equal(t, "24h", cfg.Snippets.TTL)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid port is asked again", func(t *testing.T) {
		var out bytes.Buffer
		input := "\nnope\n70000\n9001\nn\ninfo"

		cfg, err := NewWizard(strings.NewReader(input), &out).Run(DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, 9001, cfg.Gateway.Port)
		assert.False(t, cfg.Snippets.Enabled)
		assert.Equal(t, 2, strings.Count(out.String(), "Error:"))
	})

	t.Run("base is not modified", func(t *testing.T) {
		base := DefaultConfig()
		_, err := NewWizard(strings.NewReader("\n9999\n\n\n\n"), io.Discard).Run(base)
		require.NoError(t, err)
		assert.Equal(t, 8787, base.Gateway.Port)
	})

	t.Run("input ends early", func(t *testing.T) {
		_, err := NewWizard(strings.NewReader("localhost\n"), io.Discard).Run(DefaultConfig())
		assert.ErrorIs(t, err, io.EOF)
	})
}
