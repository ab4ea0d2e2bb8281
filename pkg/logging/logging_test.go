package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{name: "short", input: "  hello  ", limit: 10, want: "hello"},
		{name: "exact", input: "hello", limit: 5, want: "hello"},
		{name: "truncated", input: "hello world", limit: 5, want: "hello..."},
		{name: "zero limit", input: "hello", limit: 0, want: ""},
		{name: "multibyte", input: "résumé résumé", limit: 6, want: "résumé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateForLog(tt.input, tt.limit))
		})
	}
}

func TestWithCommonFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := WithCommonFields(zap.New(core), "claude", " ")

	logger.Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "claude", ctx[FieldProvider])
	_, hasModel := ctx[FieldModel]
	assert.False(t, hasModel, "empty model should be omitted")
}

func TestWithCommonFieldsNilLogger(t *testing.T) {
	logger := WithCommonFields(nil, "", "")
	require.NotNil(t, logger)
	logger.Info("no panic")
}

func TestNew(t *testing.T) {
	logger, err := New(true, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New(false, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
