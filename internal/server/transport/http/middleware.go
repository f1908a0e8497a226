package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/server/security"
)

// Context keys set by AuthMiddleware.
const (
	ContextUsername = "username"
	ContextAdmin    = "admin"
)

// AuthMiddleware validates the bearer token and stores the caller's
// username and admin flag in the gin context. Every failure gets the same
// generic 401: a missing header, a malformed header and a bad token are
// indistinguishable to the caller.
func AuthMiddleware(sec *security.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)

		if !strings.HasPrefix(header, common.BearerScheme) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := sec.ValidateToken(strings.TrimPrefix(header, common.BearerScheme))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(ContextUsername, claims.Subject)
		c.Set(ContextAdmin, claims.Admin)

		c.Next()
	}
}
