package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/dealerops/incentive-engine/internal/api/response"
)

// RequireRole returns middleware that enforces role-based access control
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleInterface, exists := c.Get(ContextRole)
		if !exists {
			response.Forbidden(c, "user role not found in context")
			return
		}

		userRole, ok := roleInterface.(string)
		if !ok {
			response.Forbidden(c, "invalid role format")
			return
		}

		if !slices.Contains(allowedRoles, userRole) {
			response.Forbidden(c, "insufficient permissions")
			return
		}

		c.Next()
	}
}
