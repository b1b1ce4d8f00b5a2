package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/chain"
)

// LoggingMiddleware logs requests to the gateway's own endpoints at debug
// level. Proxied traffic is logged once by the request interceptor, so this
// middleware is not mounted on the catch-all route.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := chain.NewResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.LogAttrs(r.Context(), slog.LevelDebug, "admin request",
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
