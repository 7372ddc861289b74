package logging

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger derives a per-request child of base carrying the request id,
// method, path and peer address, attaches it to the context for downstream
// handlers, and writes one summary entry when the handler returns.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_ip", r.RemoteAddr),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			logger := base.With(fields...)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(WithLogger(r.Context(), logger)))

			logger.Info("request served",
				zap.Int("status", ww.Status()),
				zap.Int("bytes_out", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(started)),
			)
		}
		return http.HandlerFunc(fn)
	}
}
