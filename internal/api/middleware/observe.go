package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/vcontests/vscubing-back/internal/platform/metrics"
)

// Observe records request metrics by route pattern and logs each request.
func Observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			code := strconv.Itoa(status)
			elapsed := time.Since(start)
			metrics.RequestCounter.WithLabelValues(code, r.Method, path).Inc()
			metrics.RequestDuration.WithLabelValues(code, r.Method, path).Observe(elapsed.Seconds())

			level := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "HTTP request",
				"method", r.Method, "path", r.URL.Path, "route", path, "status", status,
				"duration_ms", elapsed.Milliseconds(), "request_id", chiMiddleware.GetReqID(r.Context()))
		})
	}
}
