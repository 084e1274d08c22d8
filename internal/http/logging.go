package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger from RequestLogger and tags it with
// the handler, the operation and the session id routed from the path.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if sessionID, ok := SessionIDFromContext(ctx); ok && sessionID != "" {
		pairs = append(pairs, "session_id", sessionID)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
