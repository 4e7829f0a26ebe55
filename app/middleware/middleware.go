package appMiddleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yeopl/route-planner/internal/api"
)

const rateLimitedMessage = "Too many requests. Please slow down."

// RateLimitByIP caps calls per client address. Model calls are the costly
// part of this service, so the limiter sits in front of them. A
// non-positive limit disables it.
func RateLimitByIP(requests int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))
			api.ErrorResponse(w, r, http.StatusTooManyRequests, rateLimitedMessage)
		}),
	)
}

// Telemetry starts a server span per request so handler spans nest under it.
func Telemetry(operation string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(operation)
}
