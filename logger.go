package trajgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engine-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogLoad logs a model load operation.
func (l *Logger) LogLoad(ctx context.Context, path string, numModels int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model load failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "models loaded",
			"path", path,
			"models", numModels,
		)
	}
}

// LogUnload logs a model unload operation.
func (l *Logger) LogUnload(ctx context.Context, numModels int) {
	l.DebugContext(ctx, "models unloaded",
		"models", numModels,
	)
}

// LogBuild logs a model build operation.
func (l *Logger) LogBuild(ctx context.Context, inputPath string, models, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model build failed",
			"input", inputPath,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "model build completed",
			"input", inputPath,
			"models", models,
			"skipped", skipped,
		)
	}
}

// LogClassify logs a single-window classification.
func (l *Logger) LogClassify(ctx context.Context, numModels int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "classification failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "classification completed",
			"models", numModels,
		)
	}
}

// LogFilePass logs a trajectory-file classification pass.
func (l *Logger) LogFilePass(ctx context.Context, inputPath string, steps int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "trajectory file pass failed",
			"input", inputPath,
			"steps", steps,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "trajectory file pass completed",
			"input", inputPath,
			"steps", steps,
		)
	}
}
