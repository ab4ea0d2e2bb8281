package jsonrepair

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Resume  string   `json:"resume"`
	Changes []string `json:"changes"`
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "bare", input: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", input: "Here you go:\n{\"a\":1}\nThanks!", want: `{"a":1}`},
		{name: "nested", input: `x {"a":{"b":2}} y {"c":3}`, want: `{"a":{"b":2}}`},
		{name: "brace in string", input: `{"a":"}{ not a brace"} trailing }`, want: `{"a":"}{ not a brace"}`},
		{name: "escaped quote in string", input: `{"a":"say \"}\" ok"}`, want: `{"a":"say \"}\" ok"}`},
		{name: "inner whitespace", input: `{"a":{"b":1} }`, want: `{"a":{"b":1} }`},
		{name: "no object", input: "nothing here", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractObject(tt.input))
		})
	}
}

func TestExtractObjectUnclosedFallsBackToLastBrace(t *testing.T) {
	got := ExtractObject(`{"a":{"b":1}`)
	assert.Equal(t, `{"a":{"b":1}`, got)
}

func TestEscapeControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "newline in string", input: "{\"a\":\"line1\nline2\"}", want: `{"a":"line1\nline2"}`},
		{name: "tab in string", input: "{\"a\":\"x\ty\"}", want: `{"a":"x\ty"}`},
		{name: "carriage return dropped", input: "{\"a\":\"x\r\ny\"}", want: `{"a":"x\ny"}`},
		{name: "backslash before raw control", input: "{\"a\":\"x\\\x01y\"}", want: `{"a":"x\\y"}`},
		{name: "whitespace outside string untouched", input: "{\n\t\"a\": 1\n}", want: "{\n\t\"a\": 1\n}"},
		{name: "other control dropped", input: "{\"a\":\"x\x01y\"}", want: `{"a":"xy"}`},
		{name: "existing escapes kept", input: `{"a":"q\"\n"}`, want: `{"a":"q\"\n"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeControlChars(tt.input))
		})
	}
}

func TestDecodeStrict(t *testing.T) {
	var p payload
	err := Decode(`{"resume":"# Jane","changes":["a","b"]}`, &p)
	require.NoError(t, err)
	assert.Equal(t, "# Jane", p.Resume)
	assert.Equal(t, []string{"a", "b"}, p.Changes)
}

func TestDecodeRawNewlineInString(t *testing.T) {
	raw := "```json\n{\"resume\": \"# Jane Doe\n\n## Summary\nBuilds things.\", \"changes\": [\"tightened summary\"]}\n```"

	var p payload
	err := Decode(raw, &p)
	require.NoError(t, err)
	assert.Equal(t, "# Jane Doe\n\n## Summary\nBuilds things.", p.Resume)
	assert.Equal(t, []string{"tightened summary"}, p.Changes)
}

func TestDecodeCarriageReturnInString(t *testing.T) {
	var p payload
	err := Decode("{\"resume\": \"line1\r\nline2\"}", &p)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", p.Resume)
}

func TestDecodeBracesInLeadingProse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "aside", raw: "Here is the result {as requested}:\n{\"resume\": \"# Jane\"}"},
		{name: "two asides", raw: "{note} and {another}\n{\"resume\": \"# Jane\"}"},
		{name: "aside then raw newline", raw: "Result {v2}: {\"resume\": \"# Jane\nDoe\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			err := Decode(tt.raw, &p)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(p.Resume, "# Jane"))
		})
	}
}

func TestDecodeUnrecoverable(t *testing.T) {
	var p payload
	err := Decode(`{"resume": "ok", "changes": [1, }`, &p)
	require.Error(t, err)

	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.NotNil(t, parseErr.Cause)
	assert.Greater(t, parseErr.Offset, int64(0))
	assert.NotEmpty(t, parseErr.Snippet)
}

func TestDecodeNoObject(t *testing.T) {
	var p payload
	err := Decode("I could not produce a resume.", &p)

	var parseErr *Error
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Error(), "no JSON object")
}

func TestField(t *testing.T) {
	raw := "prefix {\"body\": \"line\none\", \"meta\": {\"v\": \"2\"}}"
	assert.Equal(t, "line\none", Field(raw, "body"))
	assert.Equal(t, "2", Field(raw, "meta.v"))
	assert.Equal(t, "", Field(raw, "missing"))
	assert.Equal(t, "x", Field("see {this}: {\"body\": \"x\"}", "body"))
}
