package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerops/incentive-engine/pkg/auth"
)

// Scenarios are owned by users; a handler that scopes lookups by the
// caller's user_id must never see another user's rows.
func TestOwnerIsolation_ContextCarriesUserFromJWT(t *testing.T) {
	cfg := testJWTConfig()
	userA := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	userB := uuid.MustParse("660e8400-e29b-41d4-a716-446655440000")

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/scenarios/:id", AuthMiddleware(cfg), func(c *gin.Context) {
		caller, _ := UserID(c)
		// The scenario belongs to user B.
		if caller != userB {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"owner": caller.String()})
	})

	reqA := httptest.NewRequest("GET", "/scenarios/x", nil)
	reqA.Header.Set("Authorization", "Bearer "+generateTestToken(userA, "manager"))
	wA := httptest.NewRecorder()
	r.ServeHTTP(wA, reqA)
	assert.Equal(t, http.StatusNotFound, wA.Code, "user A must not see user B's scenario")

	reqB := httptest.NewRequest("GET", "/scenarios/x", nil)
	reqB.Header.Set("Authorization", "Bearer "+generateTestToken(userB, "viewer"))
	wB := httptest.NewRecorder()
	r.ServeHTTP(wB, reqB)
	require.Equal(t, http.StatusOK, wB.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(wB.Body.Bytes(), &body))
	assert.Equal(t, userB.String(), body["owner"])
}

func TestOwnerIsolation_ForgedOrExpiredTokenBlocked(t *testing.T) {
	cfg := testJWTConfig()

	forged, err := auth.GenerateToken("attacker-secret-not-the-real-one", testIssuer, uuid.New(), "admin", 24)
	require.NoError(t, err)
	expired, err := auth.GenerateToken(testSecret, testIssuer, uuid.New(), "admin", -1)
	require.NoError(t, err)

	for name, token := range map[string]string{"forged": forged, "expired": expired} {
		t.Run(name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			handlerCalled := false
			r.GET("/protected", AuthMiddleware(cfg), func(c *gin.Context) {
				handlerCalled = true
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, handlerCalled)
		})
	}
}

func TestViewerCannotWriteTargets(t *testing.T) {
	cfg := testJWTConfig()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PUT("/departments/:id/targets", AuthMiddleware(cfg), RequireRole("admin", "manager"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("PUT", "/departments/x/targets", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(uuid.New(), "viewer"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoggingMiddleware_RecordsCallerAfterAuth(t *testing.T) {
	cfg := testJWTConfig()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	userID := uuid.New()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware(), LoggingMiddleware(logger, "incentive-engine"))
	r.GET("/things/:id", AuthMiddleware(cfg), func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest("GET", "/things/1", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(userID, "viewer"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "client_error", line["outcome"])
	assert.Equal(t, "/things/:id", line["path"])
	assert.Equal(t, userID.String(), line["user_id"])
	assert.Equal(t, "incentive-engine", line["service"])
	assert.NotEmpty(t, line["correlation_id"])
}
