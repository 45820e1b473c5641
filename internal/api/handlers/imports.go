package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/api/response"
	"github.com/dealerops/incentive-engine/internal/config"
	"github.com/dealerops/incentive-engine/internal/ingest"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/repository"
	"github.com/dealerops/incentive-engine/internal/service"
)

const importResource = "financial_import"

// IdempotencyClaimer atomically claims an Idempotency-Key for a user.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, userID uuid.UUID, key, resourceType string, resourceID uuid.UUID) (*repository.IdempotencyResult, error)
}

// ImportStore records completed imports.
type ImportStore interface {
	Create(ctx context.Context, b *models.ImportBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error)
}

// ImportHandler handles CSV imports of financial entries.
type ImportHandler struct {
	svc         *service.Service
	idempotency IdempotencyClaimer
	imports     ImportStore
	cfg         config.ImportConfig
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc *service.Service, idempotency IdempotencyClaimer, imports ImportStore, cfg config.ImportConfig) *ImportHandler {
	return &ImportHandler{svc: svc, idempotency: idempotency, imports: imports, cfg: cfg}
}

// HandleImport handles POST /api/v1/departments/:department_id/financial-entries/import.
func (h *ImportHandler) HandleImport(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	deptID, ok := uuidParam(c, "department_id")
	if !ok {
		return
	}

	// A repeated Idempotency-Key returns 409 with the original import.
	idempotencyKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	importID := uuid.New()
	if idempotencyKey != "" {
		claim, err := h.idempotency.Claim(c.Request.Context(), userID, idempotencyKey, importResource, importID)
		if err != nil {
			writeError(c, fmt.Errorf("idempotency check: %w", err))
			return
		}
		if claim.AlreadyExists {
			existing, _ := h.imports.GetByID(c.Request.Context(), claim.ResourceID)
			response.Conflict(c, "duplicate import (idempotency key match)", existing)
			return
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file field is required", nil)
		return
	}
	contentType := file.Header.Get("Content-Type")
	if contentType != "text/csv" && contentType != "application/csv" &&
		!strings.EqualFold(filepath.Ext(file.Filename), ".csv") {
		response.BadRequest(c, "file must be a CSV", nil)
		return
	}
	if file.Size > h.cfg.MaxFileSize {
		response.TooLarge(c, h.cfg.MaxFileSize)
		return
	}

	src, err := file.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open uploaded file: %w", err))
		return
	}
	defer src.Close()

	rows, warnings, err := ingest.Parse(src)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			response.BadRequest(c, err.Error(), nil)
			return
		}
		response.BadRequest(c, fmt.Sprintf("CSV validation failed: %v", err), warnings)
		return
	}

	written, err := h.svc.ImportEntries(c.Request.Context(), deptID, rows)
	if err != nil {
		writeError(c, err)
		return
	}

	batch := &models.ImportBatch{
		ID:           importID,
		DepartmentID: deptID,
		UserID:       userID,
		Filename:     file.Filename,
		RowCount:     written,
		SkippedCount: ingest.CountSkipped(warnings),
		Warnings:     warnings,
	}
	if idempotencyKey != "" {
		batch.IdempotencyKey = &idempotencyKey
	}
	if err := h.imports.Create(c.Request.Context(), batch); err != nil {
		writeError(c, fmt.Errorf("record import: %w", err))
		return
	}

	response.Success(c, http.StatusCreated, batch)
}
