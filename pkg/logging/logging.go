// Package logging builds the zap loggers shared by the CLI and the pipeline stages.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FieldProvider is the structured log field key for the text-generation provider.
	FieldProvider = "provider"
	// FieldModel is the structured log field key for the model identifier.
	FieldModel = "model"
	// FieldJob is the structured log field key for the job identifier.
	FieldJob = "job_id"
	// FieldStage is the structured log field key for the pipeline stage.
	FieldStage = "stage"
	// FieldAttempt is the structured log field key for the judge loop attempt.
	FieldAttempt = "attempt"
)

// New creates a logger writing to stdout. JSON switches the encoding, debug lowers the level.
func New(json bool, debug bool) (logger *zap.Logger, err error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}

	logger, err = cfg.Build()
	if err != nil {
		err = errors.Wrap(err, "failed to build logger")
		return logger, err
	}

	return logger, err
}

// OrNop returns the logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) (result *zap.Logger) {
	result = logger
	if result == nil {
		result = zap.NewNop()
	}
	return result
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) (result string) {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return result
	}
	runes := []rune(s)
	if len(runes) <= limit {
		result = s
		return result
	}
	result = string(runes[:limit]) + "..."
	return result
}

// WithCommonFields attaches provider and model fields, skipping empty values.
func WithCommonFields(logger *zap.Logger, provider, model string) (result *zap.Logger) {
	result = OrNop(logger)

	fields := make([]zap.Field, 0, 2)
	if v := strings.TrimSpace(provider); v != "" {
		fields = append(fields, zap.String(FieldProvider, v))
	}
	if v := strings.TrimSpace(model); v != "" {
		fields = append(fields, zap.String(FieldModel, v))
	}

	if len(fields) == 0 {
		return result
	}

	result = result.With(fields...)
	return result
}
