package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
)

// DepartmentRepository reads the store/department hierarchy.
type DepartmentRepository struct {
	db db.DBTX
}

// NewDepartmentRepository creates a new department repository.
func NewDepartmentRepository(conn db.DBTX) *DepartmentRepository {
	return &DepartmentRepository{db: conn}
}

const departmentColumns = `id, store_id, name, created_at`

// GetByID returns the department, or nil, nil if it does not exist.
func (r *DepartmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	d := &models.Department{}
	err := r.db.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id).
		Scan(&d.ID, &d.StoreID, &d.Name, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByStores returns every department of the given stores.
func (r *DepartmentRepository) ListByStores(ctx context.Context, storeIDs []uuid.UUID) ([]models.Department, error) {
	depts := make([]models.Department, 0)
	if len(storeIDs) == 0 {
		return depts, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE store_id = ANY($1) ORDER BY store_id, name`,
		storeIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.StoreID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}
