package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// StructuredLogging provides structured JSON logging for all requests
func StructuredLogging() gin.HandlerFunc {
	return LoggingMiddleware(slog.Default(), "incentive-engine")
}

// LoggingMiddleware logs one line per request. Outcome and level follow the
// status class.
func LoggingMiddleware(logger *slog.Logger, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		var outcome string
		var level slog.Level

		switch {
		case statusCode >= 200 && statusCode < 300:
			outcome = "success"
			level = slog.LevelInfo
		case statusCode >= 400 && statusCode < 500:
			outcome = "client_error"
			level = slog.LevelWarn
		case statusCode >= 500:
			outcome = "server_error"
			level = slog.LevelError
		default:
			outcome = "unknown"
			level = slog.LevelInfo
		}

		attrs := []slog.Attr{
			slog.String("service", serviceName),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status_code", statusCode),
			slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			slog.String("outcome", outcome),
		}

		// Read after Next: auth runs inside the chain.
		if id := CorrelationID(c); id != "" {
			attrs = append(attrs, slog.String("correlation_id", id))
		}
		if userID, ok := c.Get(ContextUserID); ok {
			attrs = append(attrs, slog.Any("user_id", userID))
		}
		if role, ok := c.Get(ContextRole); ok {
			attrs = append(attrs, slog.Any("role", role))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		logger.LogAttrs(c.Request.Context(), level, "request processed", attrs...)
	}
}
