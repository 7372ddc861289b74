package logging

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type loggerKey struct{}

// WithLogger returns a child context carrying the logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request-scoped logger when one was attached.
func FromContext(ctx context.Context) (*zap.Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(*zap.Logger)
	return logger, ok
}

// FromRequest is FromContext for handlers. The fallback is returned for
// requests that never passed through RequestLogger.
func FromRequest(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := FromContext(r.Context()); ok {
		return logger
	}
	return fallback
}
