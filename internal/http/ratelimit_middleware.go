package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/cache"
)

// RateLimitMiddleware enforces a per-caller quota. It runs after
// AuthMiddleware so the limiter key is the resolved external user id; a
// limiter error fails open (the request proceeds) rather than blocking
// traffic on a degraded rate limiter.
func RateLimitMiddleware(limiter cache.RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := ExternalUserID(c)
		if key == "" {
			key = c.ClientIP()
		}
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter check failed, failing open", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			writeError(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
