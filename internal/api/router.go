package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/handlers"
	"github.com/dealerops/incentive-engine/internal/api/middleware"
	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/config"
	"github.com/dealerops/incentive-engine/internal/service"
	"github.com/dealerops/incentive-engine/internal/telemetry"
	"github.com/dealerops/incentive-engine/pkg/auth"
)

// Dependencies are the collaborators the routes are wired to.
type Dependencies struct {
	Service     *service.Service
	Idempotency handlers.IdempotencyClaimer
	Imports     handlers.ImportStore
	// Metrics may be nil, in which case /metrics is not served.
	Metrics *telemetry.Collectors
	// Ping reports database health; nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.StructuredLogging())

	r.GET("/health", healthHandler(deps.Ping))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	metricsHandler := handlers.NewMetricsHandler(deps.Service)
	commissionHandler := handlers.NewCommissionHandler(deps.Service)
	scenarioHandler := handlers.NewScenarioHandler(deps.Service)
	importHandler := handlers.NewImportHandler(deps.Service, deps.Idempotency, deps.Imports, cfg.Import)

	readers := middleware.RequireRole(auth.RoleAdmin, auth.RoleManager, auth.RoleViewer)
	writers := middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)
	admins := middleware.RequireRole(auth.RoleAdmin)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(&cfg.JWT))
	{
		v1.GET("/metrics/aggregate", readers, metricsHandler.HandleAggregate)

		dept := v1.Group("/departments/:department_id")
		dept.GET("/scorecard", readers, metricsHandler.HandleScorecard)
		dept.GET("/rocks/report", readers, metricsHandler.HandleRockReport)
		dept.PUT("/targets", writers, metricsHandler.HandleSetTarget)
		dept.POST("/financial-entries/import", writers, importHandler.HandleImport)

		v1.GET("/commission/report", readers, commissionHandler.HandleReport)
		v1.GET("/commission/export.xlsx", readers, commissionHandler.HandleExportXLSX)
		v1.GET("/commission/export.html", readers, commissionHandler.HandleExportHTML)

		v1.GET("/scenarios", readers, scenarioHandler.HandleList)
		v1.GET("/scenarios/:scenario_id", readers, scenarioHandler.HandleGet)
		v1.POST("/scenarios", writers, scenarioHandler.HandleCreate)
		v1.PUT("/scenarios/:scenario_id", writers, scenarioHandler.HandleUpdate)
		v1.DELETE("/scenarios/:scenario_id", writers, scenarioHandler.HandleDelete)

		v1.POST("/cache/refresh", admins, metricsHandler.HandleRefresh)
	}

	if cfg.Server.DevTokens {
		r.POST("/dev/token", devTokenHandler(cfg))
	}

	return r
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				slog.Default().Warn("health check failed", slog.String("error", err.Error()))
				response.Unavailable(c, "database unreachable")
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "incentive-engine",
		})
	}
}

// devTokenHandler returns a handler that generates test JWTs for development.
func devTokenHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request", nil)
			return
		}

		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			response.BadRequest(c, "invalid user_id", nil)
			return
		}
		switch req.Role {
		case "":
			req.Role = auth.RoleAdmin
		case auth.RoleAdmin, auth.RoleManager, auth.RoleViewer:
		default:
			response.BadRequest(c, "role must be admin, manager or viewer", nil)
			return
		}

		token, err := auth.GenerateToken(cfg.JWT.Secret, cfg.JWT.Issuer, userID, req.Role, cfg.JWT.ExpiryHours)
		if err != nil {
			response.InternalError(c, "failed to generate token")
			return
		}

		response.Success(c, http.StatusOK, gin.H{"token": token})
	}
}
