package report

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// ContextWithLogger returns a context carrying logger. Render calls made
// with it log there instead of to the engine logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext extracts a logger stored by ContextWithLogger.
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return logger, ok && logger != nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
