package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CorrelationIDKey is the gin context key the correlation middleware sets.
const CorrelationIDKey = "correlation_id"

// Error codes carried in ErrorBody.Code.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeReplay       = "IDEMPOTENT_REPLAY"
	CodeTooLarge     = "FILE_TOO_LARGE"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeUnavailable  = "UNAVAILABLE"
)

// Envelope wraps every API response body.
type Envelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
	Meta   Meta       `json:"meta"`
}

// ErrorBody holds error details in the response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta ties a response to its request log line.
type Meta struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Timestamp     string `json:"timestamp"`
}

func meta(c *gin.Context) Meta {
	return Meta{
		CorrelationID: c.GetString(CorrelationIDKey),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}

// Success sends data with the given status.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Envelope{Status: "success", Data: data, Meta: meta(c)})
}

// Error sends an error body and aborts the remaining handlers.
func Error(c *gin.Context, statusCode int, code, message string, details any) {
	c.AbortWithStatusJSON(statusCode, Envelope{
		Status: "error",
		Error:  &ErrorBody{Code: code, Message: message, Details: details},
		Meta:   meta(c),
	})
}

func BadRequest(c *gin.Context, message string, details any) {
	Error(c, http.StatusBadRequest, CodeValidation, message, details)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// Conflict answers a replayed idempotency key with the original result as data.
func Conflict(c *gin.Context, message string, original any) {
	c.AbortWithStatusJSON(http.StatusConflict, Envelope{
		Status: "success",
		Data:   original,
		Error:  &ErrorBody{Code: CodeReplay, Message: message},
		Meta:   meta(c),
	})
}

// TooLarge rejects an upload over limit bytes.
func TooLarge(c *gin.Context, limit int64) {
	Error(c, http.StatusRequestEntityTooLarge, CodeTooLarge, "file exceeds the upload limit", gin.H{"max_bytes": limit})
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeInternal, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message, nil)
}

// Unavailable reports a failed dependency check.
func Unavailable(c *gin.Context, message string) {
	Error(c, http.StatusServiceUnavailable, CodeUnavailable, message, nil)
}
