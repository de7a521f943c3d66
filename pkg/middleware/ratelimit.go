package middleware

import (
	"net"
	"net/http"

	"service-marketplace/pkg/ratelimit"
	"service-marketplace/pkg/utils"

	"go.uber.org/zap"
)

// RateLimit keys on the authenticated user, or the client address before auth.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded", zap.String("key", key), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				utils.ResponseTooManyRequests(w, "Rate limit exceeded. Try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if userID, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "user:" + userID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
