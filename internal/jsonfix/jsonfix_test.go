package jsonfix

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"strict", `{"amount":"1250"}`, map[string]any{"amount": "1250"}},
		{"fenced", "```json\n{\"vendor\": \"Acme\"}\n```", map[string]any{"vendor": "Acme"}},
		{"prose around", `Sure! Here is the JSON: {"vendor": "Acme"} Hope it helps.`, map[string]any{"vendor": "Acme"}},
		{"trailing comma", `{"a": 1, "b": [1, 2,],}`, map[string]any{"a": 1.0, "b": []any{1.0, 2.0}}},
		{"raw newline in string", "{\"key\": \"line1\nline2\"}", map[string]any{"key": "line1\nline2"}},
		{"bom and whitespace", "\xef\xbb\xbf  {\"x\": true}  ", map[string]any{"x": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeObject([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObject_Unrepairable(t *testing.T) {
	t.Parallel()

	_, err := DecodeObject([]byte(`{"amount": 12 "vendor": "Acme"}`))
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Greater(t, pe.Offset, int64(0))
	assert.Contains(t, pe.Snippet, "vendor")
	assert.Contains(t, err.Error(), "offset")
}

func TestDecodeObject_NotAnObject(t *testing.T) {
	t.Parallel()

	_, err := DecodeObject([]byte(`null`))
	assert.Error(t, err)

	_, err = DecodeObject([]byte(`no json here`))
	assert.Error(t, err)
}

func TestDecode_ExtraRepairs(t *testing.T) {
	t.Parallel()

	singleQuotes := Repair{Name: "single_quotes", Apply: func(b []byte) []byte {
		return bytes.ReplaceAll(b, []byte("'"), []byte(`"`))
	}}

	var v struct {
		Type string `json:"type"`
	}
	require.NoError(t, Decode([]byte(`{'type': 'service_account'}`), &v, singleQuotes))
	assert.Equal(t, "service_account", v.Type)
}

func TestRepairsKeepValidJSON(t *testing.T) {
	t.Parallel()

	valid := []byte(`{"a": "x, }", "b": "tab\tok"}`)
	for _, r := range DefaultRepairs {
		if r.Name == "trailing_commas" {
			continue
		}
		assert.Equal(t, string(valid), string(r.Apply(valid)), r.Name)
	}
}
