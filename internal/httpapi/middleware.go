package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/config"
	"github.com/adilzhm/order-service/internal/observability"
)

type Limiter interface {
	Allow(ctx context.Context, clientID string, limit int, window time.Duration) bool
}

// RateLimit gates order creation with a fixed-window counter per client
// address. A disabled limiter short-circuits to allowed without touching the
// backend. The limiter itself fails open, so only a counted over-limit window
// produces a 429.
func RateLimit(limiter Limiter, cfg config.RateLimit, logger *zap.Logger, m observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			// RealIP middleware has already rewritten RemoteAddr.
			clientID := r.RemoteAddr
			if !limiter.Allow(r.Context(), clientID, cfg.Requests, cfg.Window) {
				m.IncRateLimited()
				logger.Info("request rate limited", zap.String("client_id", clientID))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ObserveRequests measures total request time and reports each request to
// Metrics.ObserveHTTP. The total duration is only known after the handler has
// written the response, too late for a Server-Timing entry; per-phase timings
// are appended by the handlers themselves before they write.
func ObserveRequests(m observability.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		m = observability.Noop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			dur := float64(time.Since(start).Microseconds()) / 1000.0
			m.ObserveHTTP(r.Method, r.URL.Path, ww.Status(), dur)
		})
	}
}

// Recoverer converts an uncaught panic on the request path into a generic
// JSON 500. The stack goes to the logs, never to the client.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic on request path",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
