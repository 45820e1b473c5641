package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/config"
	"github.com/dealerops/incentive-engine/pkg/auth"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AuthMiddleware validates JWT tokens from the Authorization header
func AuthMiddleware(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := auth.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix), cfg.Secret)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// UserID returns the authenticated caller, or false outside AuthMiddleware.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
