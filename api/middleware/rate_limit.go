package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/bundleup/bundleup-backend/api/responses"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	pkgredis "github.com/bundleup/bundleup-backend/pkg/redis"
)

// RateLimit applies a fixed-window per-user limit backed by Redis. A nil
// client disables limiting, which keeps local development and tests simple.
func RateLimit(client *pkgredis.Client, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := rateLimitScope(r)
			allowed, count, err := client.FixedWindowAllow(r.Context(), scope, limit, window)
			if err != nil {
				// Limiter outages must not take the API down with them.
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "rate limiter unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").
					WithDetails(map[string]any{"count": count, "limit": limit})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitScope(r *http.Request) string {
	subject := UserIDFromContext(r.Context())
	if subject == "" {
		subject = clientIP(r)
	}
	return strings.Join([]string{subject, r.Method}, "|")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
