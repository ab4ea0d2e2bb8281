// Package document reads rendered PDF artifacts: page count and a bounded plain-text prefix.
package document

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// Info is what the pipeline needs to know about a rendered artifact.
type Info struct {
	PageCount int
	Text      string
	// Truncated reports whether Text was cut at the character limit.
	Truncated bool
}

// Inspector reads rendered artifacts.
type Inspector interface {
	Inspect(ctx context.Context, path string, maxChars int) (Info, error)
}

// PDF inspects PDF files with ledongthuc/pdf.
type PDF struct{}

// Inspect returns the page count and up to maxChars runes of text. A maxChars of zero or less
// means no limit.
func (PDF) Inspect(ctx context.Context, path string, maxChars int) (info Info, err error) {
	err = ctx.Err()
	if err != nil {
		return info, err
	}

	var reader *pdf.Reader
	reader, err = open(path)
	if err != nil {
		return info, err
	}

	info.PageCount = reader.NumPage()
	if info.PageCount <= 0 {
		err = errors.Errorf("pdf %s reports no pages", path)
		return info, err
	}

	var text string
	text, err = plainText(reader)
	if err != nil {
		err = errors.Wrapf(err, "failed to extract text from %s", path)
		return info, err
	}

	info.Text, info.Truncated = Truncate(normalize(text), maxChars)
	return info, err
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (count int, err error) {
	var reader *pdf.Reader
	reader, err = open(path)
	if err != nil {
		return count, err
	}

	count = reader.NumPage()
	if count <= 0 {
		err = errors.Errorf("pdf %s reports no pages", path)
	}
	return count, err
}

// Truncate cuts s to limit runes. A limit of zero or less returns s unchanged.
func Truncate(s string, limit int) (out string, truncated bool) {
	out = s
	if limit <= 0 {
		return out, truncated
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return out, truncated
	}
	out = string(runes[:limit])
	truncated = true
	return out, truncated
}

func open(path string) (reader *pdf.Reader, err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read pdf %s", path)
		return reader, err
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = errors.Errorf("failed to parse pdf %s: %v", path, r)
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		err = errors.Wrapf(err, "failed to parse pdf %s", path)
		return reader, err
	}

	return reader, err
}

func plainText(reader *pdf.Reader) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("pdf text extraction panicked: %v", r)
		}
	}()

	var plain io.Reader
	plain, err = reader.GetPlainText()
	if err != nil {
		return text, err
	}

	var buf bytes.Buffer
	_, err = io.Copy(&buf, plain)
	if err != nil {
		return text, err
	}

	text = buf.String()
	return text, err
}

func normalize(text string) (out string) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	out = strings.Join(kept, "\n")
	return out
}
