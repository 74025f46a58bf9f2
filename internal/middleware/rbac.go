package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/services"
)

// RequireRole lets the request through only when the authenticated user's
// role is one of allowed. Must run after AuthMiddleware.
func RequireRole(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			unauthorized(c, msgNotAuthenticated)
			return
		}
		if err := auth.Authorize(user.Role, allowed...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": services.MsgInsufficientRole})
			return
		}
		c.Next()
	}
}
