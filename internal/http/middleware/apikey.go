package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/platemetrics/delivery-api/internal/config"
	"go.uber.org/zap"
)

// APIKey returns a middleware that requires a matching X-API-Key header on
// every request. When no key is configured the middleware is a no-op, which
// keeps local development friction-free.
func APIKey(cfg *config.AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg.APIKey == "" {
		logger.Warn("API key authentication disabled: no key configured")
		return func(next http.Handler) http.Handler { return next }
	}

	key := []byte(cfg.APIKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := []byte(r.Header.Get("X-API-Key"))
			if subtle.ConstantTimeCompare(provided, key) != 1 {
				logger.Warn("rejected request with invalid api key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"A valid API key is required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
