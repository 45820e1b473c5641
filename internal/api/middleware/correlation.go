package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/response"
)

// CorrelationHeader carries the request correlation ID both ways.
const CorrelationHeader = "X-Correlation-ID"

// Client IDs end up in logs and export responses; anything else is replaced.
var validCorrelationID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// CorrelationMiddleware accepts a well-formed client correlation ID or
// issues a new one, and echoes it on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if !validCorrelationID.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(response.CorrelationIDKey, id)
		c.Header(CorrelationHeader, id)
		c.Next()
	}
}

// CorrelationID returns the request's correlation ID, or "" outside the middleware.
func CorrelationID(c *gin.Context) string {
	return c.GetString(response.CorrelationIDKey)
}
