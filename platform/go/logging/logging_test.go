package logging_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/novalearn-io/novalearn/platform/go/logging"
)

func TestNewLoggerLevelParsing(t *testing.T) {
	_, err := logging.NewLogger(logging.Config{Level: "loud"})
	require.Error(t, err)

	logger, err := logging.NewLogger(logging.Config{Component: "api-server", Level: "WARN"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger, err = logging.NewLogger(logging.Config{})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel), "empty level defaults to info")
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoggerContextRoundTrip(t *testing.T) {
	base := zap.NewNop()
	ctx := logging.WithLogger(context.Background(), base)

	got, ok := logging.FromContext(ctx)
	require.True(t, ok)
	require.Same(t, base, got)

	_, ok = logging.FromContext(context.Background())
	require.False(t, ok)
}

func TestFromRequestFallsBack(t *testing.T) {
	fallback := zap.NewNop()
	r := httptest.NewRequest(http.MethodGet, "/courses", nil)
	require.Same(t, fallback, logging.FromRequest(r, fallback))
}

func TestRequestLoggerEmitsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	var attached *zap.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		attached, ok = logging.FromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusCreated)
	})
	h := chimw.RequestID(logging.RequestLogger(base)(inner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))

	require.NotNil(t, attached, "handler sees the request-scoped logger")
	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "request served", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, http.MethodPost, fields["method"])
	require.Equal(t, "/register", fields["path"])
	require.EqualValues(t, http.StatusCreated, fields["status"])
	require.NotEmpty(t, fields["request_id"])
}
