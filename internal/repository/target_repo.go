package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// TargetRepository handles explicit quarterly targets.
type TargetRepository struct {
	db db.DBTX
}

// NewTargetRepository creates a new target repository.
func NewTargetRepository(conn db.DBTX) *TargetRepository {
	return &TargetRepository{db: conn}
}

// ListByQuarter returns the department's targets for one quarter.
func (r *TargetRepository) ListByQuarter(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.FinancialTarget, error) {
	query := `
		SELECT id, department_id, metric_key, quarter, year, target_value,
		       target_direction, created_at, updated_at
		FROM financial_targets
		WHERE department_id = $1 AND quarter = $2 AND year = $3
	`

	rows, err := r.db.Query(ctx, query, departmentID, quarter, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := make([]models.FinancialTarget, 0)
	for rows.Next() {
		var (
			t         models.FinancialTarget
			direction string
		)
		if err := rows.Scan(
			&t.ID,
			&t.DepartmentID,
			&t.MetricKey,
			&t.Quarter,
			&t.Year,
			&t.TargetValue,
			&direction,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		t.TargetDirection = models.TargetDirection(direction)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// Upsert inserts the target or replaces the one with the same department,
// metric key, quarter and year. The stored id and timestamps are written
// back into t.
func (r *TargetRepository) Upsert(ctx context.Context, t *models.FinancialTarget) error {
	query := `
		INSERT INTO financial_targets (
			id, department_id, metric_key, quarter, year, target_value,
			target_direction, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (department_id, metric_key, quarter, year)
		DO UPDATE SET target_value = EXCLUDED.target_value,
		              target_direction = EXCLUDED.target_direction,
		              updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	id := t.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return r.db.QueryRow(ctx, query,
		id, t.DepartmentID, t.MetricKey, t.Quarter, t.Year, t.TargetValue, string(t.TargetDirection),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}
