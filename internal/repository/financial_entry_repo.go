package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// FinancialEntryRepository handles the monthly financial facts.
type FinancialEntryRepository struct {
	db        db.DBTX
	batchSize int
}

// NewFinancialEntryRepository creates a new entry repository. batchSize
// bounds the statements sent per pgx batch.
func NewFinancialEntryRepository(conn db.DBTX, batchSize int) *FinancialEntryRepository {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &FinancialEntryRepository{db: conn, batchSize: batchSize}
}

// ListByDepartment returns the department's entries for the given months,
// with the owning store joined in.
func (r *FinancialEntryRepository) ListByDepartment(ctx context.Context, departmentID uuid.UUID, months []string) ([]models.FinancialEntry, error) {
	query := `
		SELECT fe.id, fe.department_id, d.store_id, fe.metric_key, fe.month,
		       fe.value, fe.created_at, fe.updated_at
		FROM financial_entries fe
		JOIN departments d ON d.id = fe.department_id
		WHERE fe.department_id = $1 AND fe.month = ANY($2)
		ORDER BY fe.month, fe.metric_key
	`

	rows, err := r.db.Query(ctx, query, departmentID, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.FinancialEntry, 0)
	for rows.Next() {
		var e models.FinancialEntry
		if err := rows.Scan(
			&e.ID,
			&e.DepartmentID,
			&e.StoreID,
			&e.MetricKey,
			&e.Month,
			&e.Value,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert writes entries in batches, replacing the value of any existing
// fact for the same department, metric and month.
func (r *FinancialEntryRepository) Upsert(ctx context.Context, entries []models.FinancialEntry) error {
	query := `
		INSERT INTO financial_entries (id, department_id, metric_key, month, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (department_id, metric_key, month)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	for start := 0; start < len(entries); start += r.batchSize {
		end := min(start+r.batchSize, len(entries))
		chunk := entries[start:end]

		batch := &pgx.Batch{}
		for _, e := range chunk {
			id := e.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			batch.Queue(query, id, e.DepartmentID, e.MetricKey, e.Month, e.Value)
		}

		if err := execBatch(r.db.SendBatch(ctx, batch), len(chunk)); err != nil {
			return fmt.Errorf("upsert entries %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func execBatch(results pgx.BatchResults, n int) error {
	for i := 0; i < n; i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}
