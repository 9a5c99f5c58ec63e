// Package jsonfix decodes semi-structured JSON from untrusted sources: model
// completions and pasted credential files. It tries a strict decode first,
// then applies a fixed sequence of textual repairs, and reports the final
// failure with its byte offset and surrounding text.
package jsonfix

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Repair rewrites a document. Repairs must be safe on valid JSON.
type Repair struct {
	Name  string
	Apply func([]byte) []byte
}

// DefaultRepairs are applied in order, each on top of the previous result.
var DefaultRepairs = []Repair{
	{Name: "trim", Apply: trim},
	{Name: "strip_fences", Apply: stripFences},
	{Name: "outer_object", Apply: outerObject},
	{Name: "trailing_commas", Apply: trailingCommas},
	{Name: "escape_controls", Apply: escapeControls},
}

// ParseError describes a document no repair could fix.
type ParseError struct {
	Offset  int64
	Snippet string
	Repairs []string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonfix: invalid JSON at offset %d near %q: %v", e.Offset, e.Snippet, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode unmarshals raw into v. On failure it applies extra followed by
// DefaultRepairs, one at a time and cumulatively, until a decode succeeds.
func Decode(raw []byte, v any, extra ...Repair) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}

	doc := raw
	applied := make([]string, 0, len(DefaultRepairs)+len(extra))
	for _, r := range append(append([]Repair(nil), extra...), DefaultRepairs...) {
		next := r.Apply(doc)
		if bytes.Equal(next, doc) {
			continue
		}
		doc = next
		applied = append(applied, r.Name)
		if err = json.Unmarshal(doc, v); err == nil {
			return nil
		}
	}

	return newParseError(doc, err, applied)
}

// DecodeObject decodes raw into a generic JSON object.
func DecodeObject(raw []byte, extra ...Repair) (map[string]any, error) {
	var m map[string]any
	if err := Decode(raw, &m, extra...); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, newParseError(raw, errors.New("document is not an object"), nil)
	}
	return m, nil
}

func newParseError(doc []byte, err error, applied []string) *ParseError {
	var offset int64
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn):
		offset = syn.Offset
	case errors.As(err, &typ):
		offset = typ.Offset
	}
	return &ParseError{
		Offset:  offset,
		Snippet: snippet(doc, offset, 24),
		Repairs: applied,
		Err:     err,
	}
}

func snippet(doc []byte, offset int64, radius int) string {
	start := int(offset) - radius
	if start < 0 {
		start = 0
	}
	end := int(offset) + radius
	if end > len(doc) {
		end = len(doc)
	}
	if start > end {
		start = end
	}
	return string(doc[start:end])
}

func trim(b []byte) []byte {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	return bytes.TrimSpace(b)
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

func stripFences(b []byte) []byte {
	if m := fenceRe.FindSubmatch(b); m != nil {
		return m[1]
	}
	return b
}

func outerObject(b []byte) []byte {
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end <= start {
		return b
	}
	return b[start : end+1]
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func trailingCommas(b []byte) []byte {
	return trailingCommaRe.ReplaceAll(b, []byte("$1"))
}

// escapeControls escapes raw newlines, carriage returns and tabs that
// appear inside string literals.
func escapeControls(b []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(b))
	inString, escaped := false, false
	for _, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			case c == '\n':
				out.WriteString(`\n`)
				continue
			case c == '\r':
				continue
			case c == '\t':
				out.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inString = true
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}
