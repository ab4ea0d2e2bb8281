// Package jsonrepair decodes JSON objects out of model responses, tolerating Markdown fences,
// surrounding prose and unescaped control characters inside string values.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const snippetRadius = 40

// Error describes a response that could not be decoded even after re-escaping.
type Error struct {
	Offset  int64
	Snippet string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed JSON at offset %d near %q: %v", e.Offset, e.Snippet, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// ExtractObject strips Markdown code fences and returns the text from the first '{' to its
// matching closing brace. Braces inside string values are ignored. If the object never closes
// the text up to the last '}' is returned.
func ExtractObject(raw string) (obj string) {
	objs := candidates(raw)
	if len(objs) > 0 {
		obj = objs[0]
	}
	return obj
}

// candidates returns every top-level brace span in raw, in order. Prose before the object may
// contain its own braces, so the first span is not always the JSON document.
func candidates(raw string) (objs []string) {
	text := stripFences(raw)

	from := 0
	for from < len(text) {
		rel := strings.IndexByte(text[from:], '{')
		if rel < 0 {
			return objs
		}
		start := from + rel

		end, closed := matchBrace(text, start)
		if !closed {
			last := strings.LastIndexByte(text, '}')
			if last > start {
				objs = append(objs, text[start:last+1])
				return objs
			}
			objs = append(objs, text[start:])
			return objs
		}

		objs = append(objs, text[start:end+1])
		from = end + 1
	}

	return objs
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(text string, start int) (end int, closed bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
				closed = true
				return end, closed
			}
		}
	}

	return end, closed
}

// EscapeControlChars escapes raw newlines and tabs found inside JSON string values and drops
// any other control bytes there, carriage returns included. Text outside strings is left
// untouched.
func EscapeControlChars(s string) (escaped string) {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	afterBackslash := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		if afterBackslash {
			afterBackslash = false
			if c < 0x20 {
				// A backslash followed by a raw control byte: keep the escape valid.
				b.WriteString(controlEscape(c))
				continue
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case c == '\\':
			afterBackslash = true
			b.WriteByte(c)
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20:
			// dropped
		default:
			b.WriteByte(c)
		}
	}

	escaped = b.String()
	return escaped
}

// controlEscape completes a backslash that precedes a raw control byte. Newline and tab become
// their escapes; any other byte is dropped and the backslash itself is escaped.
func controlEscape(c byte) (esc string) {
	switch c {
	case '\n':
		esc = "n"
	case '\t':
		esc = "t"
	default:
		esc = `\`
	}
	return esc
}

// Decode extracts the JSON object from raw and unmarshals it into v. Each brace span is tried
// in order, first strictly and then re-escaped once; the first one that is valid JSON is
// decoded. When none is, the error describes the first span.
func Decode(raw string, v interface{}) (err error) {
	objs := candidates(raw)
	if len(objs) == 0 {
		err = &Error{Snippet: snippet(raw, 0), Cause: errors.New("no JSON object found in response")}
		return err
	}

	for _, obj := range objs {
		doc, ok := usable(obj)
		if !ok {
			continue
		}

		err = json.Unmarshal([]byte(doc), v)
		if err != nil {
			err = decodeError(doc, err)
		}
		return err
	}

	repaired := EscapeControlChars(objs[0])
	var probe interface{}
	err = decodeError(repaired, json.Unmarshal([]byte(repaired), &probe))
	return err
}

// usable returns obj, or its re-escaped form, when either is valid JSON.
func usable(obj string) (doc string, ok bool) {
	if gjson.Valid(obj) {
		doc, ok = obj, true
		return doc, ok
	}
	doc = EscapeControlChars(obj)
	ok = gjson.Valid(doc)
	return doc, ok
}

func decodeError(doc string, cause error) (err error) {
	if cause == nil {
		cause = errors.New("invalid JSON")
	}

	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(cause, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(cause, &typeErr):
		offset = typeErr.Offset
	}

	err = &Error{Offset: offset, Snippet: snippet(doc, offset), Cause: cause}
	return err
}

// Field returns the string at a gjson path of the first valid JSON object in raw, re-escaping
// control characters first. Missing paths return "".
func Field(raw, path string) (value string) {
	for _, obj := range candidates(raw) {
		if doc, ok := usable(obj); ok {
			value = gjson.Get(doc, path).String()
			return value
		}
	}
	return value
}

func stripFences(raw string) (text string) {
	text = strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}

	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}

	text = strings.TrimSpace(text)
	return text
}

func snippet(s string, offset int64) (out string) {
	start := int(offset) - snippetRadius
	if start < 0 {
		start = 0
	}
	end := int(offset) + snippetRadius
	if end > len(s) {
		end = len(s)
	}
	if start > end {
		start = end
	}
	out = s[start:end]
	return out
}
