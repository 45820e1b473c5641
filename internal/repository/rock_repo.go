package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// RockRepository reads quarterly rocks and their monthly targets.
type RockRepository struct {
	db db.DBTX
}

// NewRockRepository creates a new rock repository.
func NewRockRepository(conn db.DBTX) *RockRepository {
	return &RockRepository{db: conn}
}

// ListByQuarter returns the department's rocks for a quarter.
func (r *RockRepository) ListByQuarter(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.Rock, error) {
	query := `
		SELECT id, department_id, year, quarter, title, linked_metric_type,
		       linked_metric_key, linked_parent_metric_key, linked_submetric_name,
		       target_direction, progress_percentage, status, created_at, updated_at
		FROM rocks
		WHERE department_id = $1 AND quarter = $2 AND year = $3
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, departmentID, quarter, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rocks := make([]models.Rock, 0)
	for rows.Next() {
		var (
			rock       models.Rock
			linkedType *string
			direction  string
		)
		if err := rows.Scan(
			&rock.ID,
			&rock.DepartmentID,
			&rock.Year,
			&rock.Quarter,
			&rock.Title,
			&linkedType,
			&rock.LinkedMetricKey,
			&rock.LinkedParentMetricKey,
			&rock.LinkedSubmetricName,
			&direction,
			&rock.ProgressPercentage,
			&rock.Status,
			&rock.CreatedAt,
			&rock.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if linkedType != nil && *linkedType != "" {
			lt := models.LinkedMetricType(*linkedType)
			rock.LinkedMetricType = &lt
		}
		rock.TargetDirection = models.TargetDirection(direction)
		rocks = append(rocks, rock)
	}
	return rocks, rows.Err()
}

// ListMonthlyTargets returns the monthly targets of the given rocks.
func (r *RockRepository) ListMonthlyTargets(ctx context.Context, rockIDs []uuid.UUID) ([]models.RockMonthlyTarget, error) {
	targets := make([]models.RockMonthlyTarget, 0)
	if len(rockIDs) == 0 {
		return targets, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, rock_id, month, target_value FROM rock_monthly_targets WHERE rock_id = ANY($1) ORDER BY month`,
		rockIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.RockMonthlyTarget
		if err := rows.Scan(&t.ID, &t.RockID, &t.Month, &t.TargetValue); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
