package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/service"
)

// MetricsHandler serves aggregates, scorecards, rock reports and target
// writes for departments.
type MetricsHandler struct {
	svc *service.Service
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(svc *service.Service) *MetricsHandler {
	return &MetricsHandler{svc: svc}
}

// HandleAggregate handles GET /api/v1/metrics/aggregate.
func (h *MetricsHandler) HandleAggregate(c *gin.Context) {
	stores, ok := storeIDs(c)
	if !ok {
		return
	}
	months, ok := monthRange(c)
	if !ok {
		return
	}

	rollup, err := h.svc.Aggregate(c.Request.Context(), service.AggregateQuery{
		StoreIDs:        stores,
		DepartmentNames: listQuery(c, "department"),
		MetricKey:       c.Query("metric_key"),
		Months:          months,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"metric_key": rollup.MetricKey,
		"months":     months,
		"values":     rollup.Values,
		"total":      rollup.Values.Total(months),
		"reporting":  rollup.Reporting,
		"skipped":    rollup.Skipped,
	})
}

// HandleScorecard handles GET /api/v1/departments/:department_id/scorecard.
func (h *MetricsHandler) HandleScorecard(c *gin.Context) {
	deptID, ok := uuidParam(c, "department_id")
	if !ok {
		return
	}
	quarter, year, ok := quarterYear(c)
	if !ok {
		return
	}

	direction := models.TargetDirection(c.DefaultQuery("direction", string(models.DirectionAbove)))
	if !direction.Valid() {
		response.BadRequest(c, "direction must be above or below", nil)
		return
	}

	card, err := h.svc.Scorecard(c.Request.Context(), service.ScorecardQuery{
		DepartmentID: deptID,
		Quarter:      quarter,
		Year:         year,
		MetricKeys:   listQuery(c, "metric_key"),
		Direction:    direction,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, card)
}

// HandleRockReport handles GET /api/v1/departments/:department_id/rocks/report.
func (h *MetricsHandler) HandleRockReport(c *gin.Context) {
	deptID, ok := uuidParam(c, "department_id")
	if !ok {
		return
	}
	quarter, year, ok := quarterYear(c)
	if !ok {
		return
	}

	report, err := h.svc.RockReport(c.Request.Context(), deptID, quarter, year)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

type setTargetRequest struct {
	MetricKey       string   `json:"metric_key"`
	ParentKey       string   `json:"parent_key"`
	OrderIndex      *int     `json:"order_index"`
	Name            string   `json:"name"`
	Quarter         int      `json:"quarter" binding:"required"`
	Year            int      `json:"year" binding:"required"`
	TargetValue     *float64 `json:"target_value" binding:"required"`
	TargetDirection string   `json:"target_direction"`
}

// HandleSetTarget handles PUT /api/v1/departments/:department_id/targets.
func (h *MetricsHandler) HandleSetTarget(c *gin.Context) {
	deptID, ok := uuidParam(c, "department_id")
	if !ok {
		return
	}

	var req setTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", gin.H{"error": err.Error()})
		return
	}
	if req.TargetDirection == "" {
		req.TargetDirection = string(models.DirectionAbove)
	}

	target, err := h.svc.SetTarget(c.Request.Context(), service.TargetInput{
		DepartmentID:  deptID,
		MetricKey:     req.MetricKey,
		ParentKey:     req.ParentKey,
		OrderIndex:    req.OrderIndex,
		SubmetricName: req.Name,
		Quarter:       req.Quarter,
		Year:          req.Year,
		Value:         *req.TargetValue,
		Direction:     models.TargetDirection(req.TargetDirection),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, target)
}

type refreshRequest struct {
	DepartmentID *uuid.UUID `json:"department_id"`
}

// HandleRefresh handles POST /api/v1/cache/refresh. Without a department
// every cached bundle is dropped.
func (h *MetricsHandler) HandleRefresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body", gin.H{"error": err.Error()})
			return
		}
	}
	h.svc.Refresh(req.DepartmentID)

	scope := "all"
	if req.DepartmentID != nil {
		scope = req.DepartmentID.String()
	}
	response.Success(c, http.StatusOK, gin.H{"refreshed": scope})
}
