package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// ImportRepository records CSV imports of financial entries.
type ImportRepository struct {
	db db.DBTX
}

// NewImportRepository creates a new import repository.
func NewImportRepository(conn db.DBTX) *ImportRepository {
	return &ImportRepository{db: conn}
}

// importColumns is the canonical column list for import_batches.
const importColumns = `id, department_id, user_id, filename, row_count, skipped_count,
	warnings, idempotency_key, created_at`

func scanImport(row pgx.Row, b *models.ImportBatch) error {
	var warnings []byte
	if err := row.Scan(
		&b.ID,
		&b.DepartmentID,
		&b.UserID,
		&b.Filename,
		&b.RowCount,
		&b.SkippedCount,
		&warnings,
		&b.IdempotencyKey,
		&b.CreatedAt,
	); err != nil {
		return err
	}
	b.Warnings = make([]string, 0)
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &b.Warnings); err != nil {
			return fmt.Errorf("decode import warnings: %w", err)
		}
	}
	return nil
}

// Create inserts an import batch record.
func (r *ImportRepository) Create(ctx context.Context, b *models.ImportBatch) error {
	if b == nil {
		return errors.New("import batch cannot be nil")
	}
	if b.Warnings == nil {
		b.Warnings = []string{}
	}
	warnings, err := json.Marshal(b.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	query := `
		INSERT INTO import_batches (
			id, department_id, user_id, filename, row_count, skipped_count,
			warnings, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING ` + importColumns

	return scanImport(r.db.QueryRow(ctx, query,
		b.ID, b.DepartmentID, b.UserID, b.Filename, b.RowCount, b.SkippedCount, warnings, b.IdempotencyKey,
	), b)
}

// GetByID retrieves an import batch, or nil, nil.
func (r *ImportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportBatch, error) {
	b := &models.ImportBatch{}
	err := scanImport(r.db.QueryRow(ctx, `SELECT `+importColumns+` FROM import_batches WHERE id = $1`, id), b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
