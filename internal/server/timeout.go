package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request's context to timeout. A zero or
// negative timeout leaves the context alone.
// Note: This does not forcibly terminate the handler, it relies on the handler
// checking context.Done() for cooperative cancellation. The proxy does, so a
// slow backend surfaces as context.DeadlineExceeded.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
