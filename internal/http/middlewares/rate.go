package middlewares

import (
	"fmt"
	"net/http"

	"github.com/markalston/diego-auth/internal/http/errors"
	"github.com/markalston/diego-auth/internal/observability/logger"
	"github.com/markalston/diego-auth/internal/rate"
)

// WithLoginRateLimit limita intentos de login por IP de cliente.
// Si el limiter falla (ej. Redis caído) el request pasa: preferimos logins
// sin límite a logins imposibles.
func WithLoginRateLimit(limiter rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", res.RetryAfter.Seconds()))
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
