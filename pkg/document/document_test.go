package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikogura/resume-forge/pkg/document/documenttest"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		name  string
		pages int
	}{
		{name: "one page", pages: 1},
		{name: "three pages", pages: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "resume.pdf")
			documenttest.WritePDF(t, path, tt.pages, "Jane Doe")

			count, err := PageCount(path)
			require.NoError(t, err)
			assert.Equal(t, tt.pages, count)
		})
	}
}

func TestPageCountMissingFile(t *testing.T) {
	_, err := PageCount(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestInspectNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("# just markdown\n"), 0600))

	_, err := PDF{}.Inspect(context.Background(), path, 100)
	assert.Error(t, err)
}

func TestInspectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PDF{}.Inspect(ctx, "unused.pdf", 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncate(t *testing.T) {
	out, truncated := Truncate("résumé", 3)
	assert.Equal(t, "rés", out)
	assert.True(t, truncated)

	out, truncated = Truncate("short", 10)
	assert.Equal(t, "short", out)
	assert.False(t, truncated)

	out, truncated = Truncate("unbounded", 0)
	assert.Equal(t, "unbounded", out)
	assert.False(t, truncated)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a\nb", normalize("  a  \n\n\n b\n"))
}
