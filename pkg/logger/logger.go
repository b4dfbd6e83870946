// Package logger configures the process-wide slog logger and carries
// per-message attributes through a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

func Setup(level string, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. format is "json" or "text".
func New(w io.Writer, level string, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithAttrs returns a context whose FromContext logger carries args.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if prev, ok := ctx.Value(contextKey{}).([]any); ok {
		args = append(append([]any(nil), prev...), args...)
	}
	return context.WithValue(ctx, contextKey{}, args)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if args, ok := ctx.Value(contextKey{}).([]any); ok {
		logger = logger.With(args...)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
