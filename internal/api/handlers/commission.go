package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/export"
	"github.com/dealerops/incentive-engine/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CommissionHandler serves the caller's payplan evaluations.
type CommissionHandler struct {
	svc *service.Service
}

// NewCommissionHandler creates a new commission handler.
func NewCommissionHandler(svc *service.Service) *CommissionHandler {
	return &CommissionHandler{svc: svc}
}

func (h *CommissionHandler) report(c *gin.Context) (*service.CommissionReport, bool) {
	userID, ok := caller(c)
	if !ok {
		return nil, false
	}
	stores, ok := storeIDs(c)
	if !ok {
		return nil, false
	}
	months, ok := monthRange(c)
	if !ok {
		return nil, false
	}

	report, err := h.svc.CommissionReport(c.Request.Context(), service.CommissionQuery{
		OwnerUserID: userID,
		StoreIDs:    stores,
		Months:      months,
	})
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return report, true
}

// HandleReport handles GET /api/v1/commission/report.
func (h *CommissionHandler) HandleReport(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, report)
}

// HandleExportXLSX handles GET /api/v1/commission/export.xlsx.
func (h *CommissionHandler) HandleExportXLSX(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}

	// Render fully before writing so a failure can still become an envelope.
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, report.Months, report.Scenarios); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(report, "xlsx")))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// HandleExportHTML handles GET /api/v1/commission/export.html.
func (h *CommissionHandler) HandleExportHTML(c *gin.Context) {
	report, ok := h.report(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Commission %s", periodLabel(report.Months))
	if err := export.WriteHTML(&buf, title, report.Months, report.Scenarios); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func periodLabel(months []string) string {
	if len(months) == 1 {
		return months[0]
	}
	return months[0] + " to " + months[len(months)-1]
}

func exportFilename(report *service.CommissionReport, ext string) string {
	if len(report.Months) == 1 {
		return fmt.Sprintf("commission_%s.%s", report.Months[0], ext)
	}
	return fmt.Sprintf("commission_%s_%s.%s", report.Months[0], report.Months[len(report.Months)-1], ext)
}
