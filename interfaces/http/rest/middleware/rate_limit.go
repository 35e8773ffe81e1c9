package middleware

import (
	"net/http"

	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/common"

	"go.uber.org/zap"
)

// RateLimit enforces the shared request budget stored in DynamoDB. The
// in-process limiters inside Authenticate reset on every Lambda cold start;
// this one holds state across invocations. Without a configured limiter it
// fails open.
func RateLimit(limiter *auth.DistributedRateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Authenticated requests count against the user, everything
			// else against the client IP
			key := getClientIP(r)
			if userID, ok := common.GetUserID(r.Context()); ok {
				key = userID
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Distributed rate limiter degraded",
					zap.String("key", key),
					zap.Error(err),
				)
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			headers := make(map[string]string)
			if err := limiter.SetHeaders(r.Context(), key, headers); err == nil {
				for k, v := range headers {
					w.Header().Set(k, v)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
