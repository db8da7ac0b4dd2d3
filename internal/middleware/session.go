package middleware

import (
	"nimbus-portal/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ContextUsername = "username"

// Session exposes the identity carried by the session cookie. Anonymous
// visitors pass through with an empty username.
func Session(manager *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := manager.Load(c)
		if claims.Username != "" {
			logger.Debug("Session identity", zap.String("username", claims.Username))
		}
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}
