package diskidx

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific fields.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndex tags the logger with the index kind and path.
func (l *Logger) WithIndex(kind Kind, path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("kind", kind.String(), "path", path),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, key any, pos Position, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"key", key,
			"position", pos,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"key", key,
			"position", pos,
		)
	}
}

// LogSearch logs a point search.
func (l *Logger) LogSearch(ctx context.Context, key any, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"key", key,
			"results", results,
		)
	}
}

// LogRangeSearch logs a range search.
func (l *Logger) LogRangeSearch(ctx context.Context, low, high any, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range search failed",
			"low", low,
			"high", high,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "range search completed",
			"low", low,
			"high", high,
			"results", results,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, key any, removed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"key", key,
			"removed", removed,
		)
	}
}

// LogBuild logs the summary of a bulk build.
func (l *Logger) LogBuild(ctx context.Context, stats BuildStats, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "build failed",
			"inserted", stats.Inserted,
			"skipped", stats.Skipped,
			"error", err,
		)
	case stats.Skipped > 0:
		l.WarnContext(ctx, "build completed with skipped records",
			"inserted", stats.Inserted,
			"skipped", stats.Skipped,
			"duration", stats.Duration.Round(time.Millisecond),
		)
	default:
		l.InfoContext(ctx, "build completed",
			"inserted", stats.Inserted,
			"duration", stats.Duration.Round(time.Millisecond),
		)
	}
}
