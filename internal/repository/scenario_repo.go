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

// ScenarioRepository handles payplan scenarios. Rules are stored inline as
// JSONB, so deleting a scenario deletes its rules.
type ScenarioRepository struct {
	db db.DBTX
}

// NewScenarioRepository creates a new scenario repository.
func NewScenarioRepository(conn db.DBTX) *ScenarioRepository {
	return &ScenarioRepository{db: conn}
}

const scenarioColumns = `id, owner_user_id, name, base_salary_annual, rules,
	department_names, is_active, created_at, updated_at`

func scanScenario(row pgx.Row, sc *models.PayplanScenario) error {
	var rules []byte
	if err := row.Scan(
		&sc.ID,
		&sc.OwnerUserID,
		&sc.Name,
		&sc.BaseSalaryAnnual,
		&rules,
		&sc.DepartmentNames,
		&sc.IsActive,
		&sc.CreatedAt,
		&sc.UpdatedAt,
	); err != nil {
		return err
	}
	sc.Rules = make([]models.CommissionRule, 0)
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &sc.Rules); err != nil {
			return fmt.Errorf("decode rules of scenario %s: %w", sc.ID, err)
		}
	}
	return nil
}

func (r *ScenarioRepository) list(ctx context.Context, query string, args ...any) ([]models.PayplanScenario, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenarios := make([]models.PayplanScenario, 0)
	for rows.Next() {
		var sc models.PayplanScenario
		if err := scanScenario(rows, &sc); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

// ListActive returns the owner's scenarios with is_active set.
func (r *ScenarioRepository) ListActive(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	return r.list(ctx,
		`SELECT `+scenarioColumns+` FROM payplan_scenarios
		 WHERE owner_user_id = $1 AND is_active ORDER BY created_at`,
		ownerUserID,
	)
}

// ListByOwner returns every scenario of the owner.
func (r *ScenarioRepository) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	return r.list(ctx,
		`SELECT `+scenarioColumns+` FROM payplan_scenarios
		 WHERE owner_user_id = $1 ORDER BY created_at`,
		ownerUserID,
	)
}

// GetByID returns the owner's scenario, or nil, nil.
func (r *ScenarioRepository) GetByID(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (*models.PayplanScenario, error) {
	sc := &models.PayplanScenario{}
	err := scanScenario(r.db.QueryRow(ctx,
		`SELECT `+scenarioColumns+` FROM payplan_scenarios WHERE id = $1 AND owner_user_id = $2`,
		scenarioID, ownerUserID,
	), sc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sc, nil
}

// Create inserts a scenario.
func (r *ScenarioRepository) Create(ctx context.Context, sc *models.PayplanScenario) error {
	if sc == nil {
		return errors.New("scenario cannot be nil")
	}
	rules, err := json.Marshal(sc.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	query := `
		INSERT INTO payplan_scenarios (
			id, owner_user_id, name, base_salary_annual, rules,
			department_names, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + scenarioColumns

	return scanScenario(r.db.QueryRow(ctx, query,
		sc.ID, sc.OwnerUserID, sc.Name, sc.BaseSalaryAnnual, rules, sc.DepartmentNames, sc.IsActive,
	), sc)
}

// Update replaces a scenario of its owner. It reports false when no row
// matched.
func (r *ScenarioRepository) Update(ctx context.Context, sc *models.PayplanScenario) (bool, error) {
	if sc == nil {
		return false, errors.New("scenario cannot be nil")
	}
	rules, err := json.Marshal(sc.Rules)
	if err != nil {
		return false, fmt.Errorf("encode rules: %w", err)
	}

	query := `
		UPDATE payplan_scenarios
		SET name = $3, base_salary_annual = $4, rules = $5,
		    department_names = $6, is_active = $7, updated_at = NOW()
		WHERE id = $1 AND owner_user_id = $2
		RETURNING ` + scenarioColumns

	err = scanScenario(r.db.QueryRow(ctx, query,
		sc.ID, sc.OwnerUserID, sc.Name, sc.BaseSalaryAnnual, rules, sc.DepartmentNames, sc.IsActive,
	), sc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the owner's scenario.
func (r *ScenarioRepository) Delete(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM payplan_scenarios WHERE id = $1 AND owner_user_id = $2`,
		scenarioID, ownerUserID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
