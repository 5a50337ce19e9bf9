package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clone-llm/internal/service"
)

// NewRouter configures the gin router with middleware and the nine
// external endpoints. The rate limiter is the one srv was built with.
func NewRouter(
	logger *zap.Logger,
	srv *Server,
	verifier *service.JWTVerifier,
	allowXUserIDHeader bool,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", srv.Health)

	authed := r.Group("/")
	authed.Use(AuthMiddleware(verifier, allowXUserIDHeader), RateLimitMiddleware(srv.rateLimiter, logger))

	authed.POST("/chat", srv.Chat)
	authed.POST("/content/age-verify", srv.AgeVerify)
	authed.GET("/content/session/:conversation_id", srv.SessionInspect)
	authed.POST("/content/classify", srv.ClassifyProbe)

	authed.GET("/preferences", srv.GetPreferences)
	authed.POST("/preferences", srv.SetPreferences)
	authed.DELETE("/preferences", srv.ClearPreferences)

	authed.GET("/conversations", srv.ListConversations)
	authed.POST("/conversation/reset", srv.ResetConversation)
	authed.POST("/memory/clear", srv.ClearMemory)

	return r
}

// zapLoggerMiddleware logs one structured line per request.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware forces Content-Type: application/json on
// responses that don't set their own (the chat handler overrides this
// for its NDJSON stream).
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
