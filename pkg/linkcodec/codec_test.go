package linkcodec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"a",
		`"Hello world!" type cr`,
		"line one\nline two\r\n\ttabbed",
		"Привет, мир",
		"日本語のコード",
		"emoji 🚀 and 𝔘𝔫𝔦𝔠𝔬𝔡𝔢",
		"\x00\xff\xfe not utf-8",
		strings.Repeat("{ } ( ) + / = ?", 200),
	}

	for _, input := range inputs {
		token := Encode(input)
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "=")
		assert.NotContains(t, token, "#")

		decoded, err := Decode(token)
		require.NoError(t, err)
		assert.Equal(t, input, decoded)
	}
}

func TestDecode_AcceptsStandardAlphabet(t *testing.T) {
	text := `{"main.fif":"\"Hello world!\" type cr"}` + "??>>"
	legacy := base64.StdEncoding.EncodeToString([]byte(text))

	decoded, err := Decode(legacy)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode("***not base64***")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenFromLink(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{"full url", "https://play.example/path#abc", "abc"},
		{"fragment", "#abc", "abc"},
		{"bare token", "abc", "abc"},
		{"empty fragment", "https://play.example/#", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFromLink(tt.link))
		})
	}
}

func TestMarshal_KeepsOrder(t *testing.T) {
	entries := []Entry{
		{Filename: "z.fif", Code: "1 2 + ."},
		{Filename: "a.fif", Code: "<b b> <s"},
		{Filename: "notes.txt", Code: "ünïcödé"},
	}

	link, err := Marshal(entries)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "#"))

	decoded, err := Decode(strings.TrimPrefix(link, "#"))
	require.NoError(t, err)
	assert.Equal(t, `{"z.fif":"1 2 + .","a.fif":"<b b> <s","notes.txt":"ünïcödé"}`, decoded)

	back, err := Unmarshal("https://play.example/" + link)
	require.NoError(t, err)
	assert.Equal(t, entries, back)
}

func TestMarshal_Deterministic(t *testing.T) {
	entries := []Entry{{Filename: "main.fif", Code: "main"}, {Filename: "lib.fif", Code: "lib"}}

	first, err := Marshal(entries)
	require.NoError(t, err)
	second, err := Marshal(entries)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUnmarshal_Empty(t *testing.T) {
	_, err := Unmarshal("https://play.example/")
	assert.ErrorIs(t, err, ErrEmptyLink)

	entries, err := Unmarshal("#" + Encode("{}"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnmarshal_InvalidShape(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"array", `["main.fif"]`},
		{"number value", `{"main.fif": 42}`},
		{"nested object", `{"main.fif": {"code": "x"}}`},
		{"not json", `main.fif`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(Encode(tt.json))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestUnmarshalJSON_DuplicateKeys(t *testing.T) {
	entries, err := UnmarshalJSON([]byte(`{"a.fif":"first","b.fif":"b","a.fif":"second"}`))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Filename: "a.fif", Code: "second"},
		{Filename: "b.fif", Code: "b"},
	}, entries)
}

func TestToMap(t *testing.T) {
	m := ToMap([]Entry{{Filename: "a", Code: "1"}, {Filename: "b", Code: "2"}})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)
}
