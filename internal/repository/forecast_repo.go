package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// ForecastRepository reads generated forecasts. Forecasts are written by a
// separate generator and are read-only here.
type ForecastRepository struct {
	db db.DBTX
}

// NewForecastRepository creates a new forecast repository.
func NewForecastRepository(conn db.DBTX) *ForecastRepository {
	return &ForecastRepository{db: conn}
}

// ListEntries returns the monthly entries of the department's forecast for
// forecastYear. It is empty when no forecast was generated.
func (r *ForecastRepository) ListEntries(ctx context.Context, departmentID uuid.UUID, forecastYear int) ([]models.ForecastEntry, error) {
	query := `
		SELECT fe.id, fe.forecast_id, f.department_id, f.forecast_year,
		       fe.metric_key, fe.month, fe.forecast_value
		FROM forecast_entries fe
		JOIN forecasts f ON f.id = fe.forecast_id
		WHERE f.department_id = $1 AND f.forecast_year = $2
	`

	rows, err := r.db.Query(ctx, query, departmentID, forecastYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.ForecastEntry, 0)
	for rows.Next() {
		var fe models.ForecastEntry
		if err := rows.Scan(
			&fe.ID,
			&fe.ForecastID,
			&fe.DepartmentID,
			&fe.ForecastYear,
			&fe.MetricKey,
			&fe.Month,
			&fe.ForecastValue,
		); err != nil {
			return nil, err
		}
		entries = append(entries, fe)
	}
	return entries, rows.Err()
}
