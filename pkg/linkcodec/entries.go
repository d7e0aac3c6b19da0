package linkcodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidState is returned when decoded link state is not an object of
// filename to code
var ErrInvalidState = errors.New("invalid workspace state")

// Entry is one exported file: its name and its code
type Entry struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

// stateSchema describes the JSON document carried by a link
var stateSchema = map[string]interface{}{
	"type": "object",
	"additionalProperties": map[string]interface{}{
		"type": "string",
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(stateSchema))
	})
	return compiledSchema, schemaErr
}

// MarshalJSON renders entries as a JSON object, keeping their order.
func MarshalJSON(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	quote := func(s string) ([]byte, error) {
		buf.Reset()
		if err := enc.Encode(s); err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	}

	out := bytes.NewBufferString("{")
	for i, entry := range entries {
		if i > 0 {
			out.WriteByte(',')
		}
		key, err := quote(entry.Filename)
		if err != nil {
			return nil, err
		}
		out.Write(key)
		out.WriteByte(':')
		value, err := quote(entry.Code)
		if err != nil {
			return nil, err
		}
		out.Write(value)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// UnmarshalJSON parses a JSON object of filename to code. Entries come back
// in document order; a repeated key keeps its first position and its last
// value.
func UnmarshalJSON(data []byte) ([]Entry, error) {
	if err := validateState(data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidState)
	}

	entries := []Entry{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		valueTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		filename, _ := keyTok.(string)
		code, ok := valueTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: code of %q is not a string", ErrInvalidState, filename)
		}
		if i, seen := index[filename]; seen {
			entries[i].Code = code
			continue
		}
		index[filename] = len(entries)
		entries = append(entries, Entry{Filename: filename, Code: code})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return entries, nil
}

func validateState(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidState, strings.Join(msgs, "; "))
	}
	return nil
}

// Marshal produces the fragment of a share link, marker included.
func Marshal(entries []Entry) (string, error) {
	data, err := MarshalJSON(entries)
	if err != nil {
		return "", err
	}
	return FragmentMarker + Encode(string(data)), nil
}

// Unmarshal reverses Marshal. It accepts a full URL, a fragment or a bare
// token.
func Unmarshal(link string) ([]Entry, error) {
	token := TokenFromLink(link)
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyLink
	}
	text, err := Decode(token)
	if err != nil {
		return nil, err
	}
	return UnmarshalJSON([]byte(text))
}

// ToMap flattens entries into a plain filename to code map.
func ToMap(entries []Entry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		out[entry.Filename] = entry.Code
	}
	return out
}
