package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/service"
)

// ScenarioHandler manages the caller's payplan scenarios.
type ScenarioHandler struct {
	svc *service.Service
}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler(svc *service.Service) *ScenarioHandler {
	return &ScenarioHandler{svc: svc}
}

type scenarioRequest struct {
	Name             string                  `json:"name" binding:"required"`
	BaseSalaryAnnual float64                 `json:"base_salary_annual"`
	Rules            []models.CommissionRule `json:"rules"`
	DepartmentNames  []string                `json:"department_names"`
	IsActive         *bool                   `json:"is_active"`
}

func (r scenarioRequest) toModel(id, owner uuid.UUID) *models.PayplanScenario {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.PayplanScenario{
		ID:               id,
		OwnerUserID:      owner,
		Name:             r.Name,
		BaseSalaryAnnual: r.BaseSalaryAnnual,
		Rules:            r.Rules,
		DepartmentNames:  r.DepartmentNames,
		IsActive:         active,
	}
}

// HandleList handles GET /api/v1/scenarios.
func (h *ScenarioHandler) HandleList(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	scenarios, err := h.svc.ListScenarios(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, scenarios)
}

// HandleGet handles GET /api/v1/scenarios/:scenario_id.
func (h *ScenarioHandler) HandleGet(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "scenario_id")
	if !ok {
		return
	}
	sc, err := h.svc.GetScenario(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sc)
}

// HandleCreate handles POST /api/v1/scenarios.
func (h *ScenarioHandler) HandleCreate(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", gin.H{"error": err.Error()})
		return
	}

	sc := req.toModel(uuid.Nil, userID)
	if err := h.svc.CreateScenario(c.Request.Context(), sc); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, sc)
}

// HandleUpdate handles PUT /api/v1/scenarios/:scenario_id.
func (h *ScenarioHandler) HandleUpdate(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "scenario_id")
	if !ok {
		return
	}
	var req scenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", gin.H{"error": err.Error()})
		return
	}

	sc := req.toModel(id, userID)
	if err := h.svc.UpdateScenario(c.Request.Context(), sc); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sc)
}

// HandleDelete handles DELETE /api/v1/scenarios/:scenario_id.
func (h *ScenarioHandler) HandleDelete(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "scenario_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteScenario(c.Request.Context(), userID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
