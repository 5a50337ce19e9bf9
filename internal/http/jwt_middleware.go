package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clone-llm/internal/service"
)

const externalUserIDKey = "external_user_id"

// AuthMiddleware resolves the caller's external identity: a JWT bearer
// token takes precedence when present; the X-User-Id header is honored
// only when allowXUserIDHeader is true. Neither present (or the bearer
// token is invalid) is an auth_failed 401 before any streaming begins.
func AuthMiddleware(verifier *service.JWTVerifier, allowXUserIDHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header != "" {
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				writeError(c, http.StatusUnauthorized, "auth_failed", "malformed authorization header")
				c.Abort()
				return
			}
			token := strings.TrimSpace(header[len("Bearer "):])
			if verifier == nil {
				writeError(c, http.StatusUnauthorized, "auth_failed", "bearer auth not configured")
				c.Abort()
				return
			}
			claims, err := verifier.ParseAccessToken(token)
			if err != nil {
				writeError(c, http.StatusUnauthorized, "auth_failed", "invalid or expired token")
				c.Abort()
				return
			}
			c.Set(externalUserIDKey, claims.ExternalUserID)
			c.Next()
			return
		}

		if allowXUserIDHeader {
			if uid := strings.TrimSpace(c.GetHeader("X-User-Id")); uid != "" {
				c.Set(externalUserIDKey, uid)
				c.Next()
				return
			}
		}

		writeError(c, http.StatusUnauthorized, "auth_failed", "missing credentials")
		c.Abort()
	}
}

// ExternalUserID reads the identity AuthMiddleware resolved for this
// request.
func ExternalUserID(c *gin.Context) string {
	v, _ := c.Get(externalUserIDKey)
	id, _ := v.(string)
	return id
}

func writeError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{"kind": kind, "message": message})
}
