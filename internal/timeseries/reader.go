package timeseries

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/models"
)

// Reader supplies the raw fact rows the engine computes over.
// Missing rows are not errors: list methods return empty slices and
// single-row getters return nil, nil.
type Reader interface {
	GetDepartment(ctx context.Context, departmentID uuid.UUID) (*models.Department, error)
	ListDepartments(ctx context.Context, storeIDs []uuid.UUID) ([]models.Department, error)
	ListFinancialEntries(ctx context.Context, departmentID uuid.UUID, months []string) ([]models.FinancialEntry, error)
	ListFinancialTargets(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.FinancialTarget, error)
	ListForecastEntries(ctx context.Context, departmentID uuid.UUID, forecastYear int) ([]models.ForecastEntry, error)
	ListActiveScenarios(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error)
	ListRocks(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.Rock, error)
	ListRockMonthlyTargets(ctx context.Context, rockIDs []uuid.UUID) ([]models.RockMonthlyTarget, error)
}

// TargetWriter persists explicit targets. UpsertTarget is idempotent on
// (department, metric key, quarter, year).
type TargetWriter interface {
	UpsertTarget(ctx context.Context, target *models.FinancialTarget) error
}

// EntryWriter persists imported financial entries, replacing any existing
// fact for the same department/metric/month.
type EntryWriter interface {
	UpsertFinancialEntries(ctx context.Context, entries []models.FinancialEntry) error
}

// ScenarioStore manages payplan scenarios on behalf of their owner. Every
// method is scoped to ownerUserID; a scenario owned by someone else behaves
// as if it did not exist.
type ScenarioStore interface {
	ListScenarios(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error)
	GetScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (*models.PayplanScenario, error)
	CreateScenario(ctx context.Context, scenario *models.PayplanScenario) error
	// UpdateScenario returns false when no scenario of the owner matched.
	UpdateScenario(ctx context.Context, scenario *models.PayplanScenario) (bool, error)
	// DeleteScenario removes the scenario and its embedded rules.
	DeleteScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (bool, error)
}
