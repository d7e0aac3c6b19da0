package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "workspace link",
			input:    "opened https://play.example/#W3siZmlsZW5hbWUiOiJtYWluLmZpZiJ9XQ now",
			expected: "opened https://play.example/#[REDACTED 34 chars] now",
		},
		{
			name:     "state query",
			input:    "GET /ws?state=%23W3siZmlsZW5hbWUiOiJtYWluLmZpZiJ9XQ",
			expected: "GET /ws?state=[REDACTED 37 chars]",
		},
		{
			name:     "token field",
			input:    `{"token":"W3siZmlsZW5hbWUiOiJtYWluLmZpZiJ9XQ","id":"abc"}`,
			expected: `{"token":"[REDACTED 34 chars]","id":"abc"}`,
		},
		{
			name:     "link field holding a fragment",
			input:    `{"link":"#W3siZmlsZW5hbWUiOiJtYWluLmZpZiJ9XQ"}`,
			expected: `{"link":"[REDACTED 35 chars]"}`,
		},
		{
			name:     "short fragments are kept",
			input:    "jump to #section",
			expected: "jump to #section",
		},
		{
			name:     "filenames are kept",
			input:    `{"filename":"main.fif"}`,
			expected: `{"filename":"main.fif"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Redact(tt.input))
		})
	}
}

func TestRedactor_AddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`snippet-[a-z0-9]+`))
	assert.Equal(t, "open [REDACTED]", r.Redact("open snippet-abc123"))

	assert.Error(t, r.AddPattern(`[invalid`))
}

func TestRedactor_Wrap(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	input := []byte("link #W3siZmlsZW5hbWUiOiJtYWluLmZpZiJ9XQ\n")
	n, err := w.Write(input)
	require.NoError(t, err)

	assert.Equal(t, len(input), n)
	assert.Equal(t, "link #[REDACTED 34 chars]\n", buf.String())
}
