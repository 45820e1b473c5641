package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/timeseries"
)

// Store exposes the Postgres repositories through the time-series
// interfaces the engine reads from and writes to.
type Store struct {
	Departments *DepartmentRepository
	Entries     *FinancialEntryRepository
	Targets     *TargetRepository
	Forecasts   *ForecastRepository
	Scenarios   *ScenarioRepository
	Rocks       *RockRepository
}

// NewStore builds every repository over conn.
func NewStore(conn db.DBTX, batchSize int) *Store {
	return &Store{
		Departments: NewDepartmentRepository(conn),
		Entries:     NewFinancialEntryRepository(conn, batchSize),
		Targets:     NewTargetRepository(conn),
		Forecasts:   NewForecastRepository(conn),
		Scenarios:   NewScenarioRepository(conn),
		Rocks:       NewRockRepository(conn),
	}
}

func (s *Store) GetDepartment(ctx context.Context, departmentID uuid.UUID) (*models.Department, error) {
	return s.Departments.GetByID(ctx, departmentID)
}

func (s *Store) ListDepartments(ctx context.Context, storeIDs []uuid.UUID) ([]models.Department, error) {
	return s.Departments.ListByStores(ctx, storeIDs)
}

func (s *Store) ListFinancialEntries(ctx context.Context, departmentID uuid.UUID, months []string) ([]models.FinancialEntry, error) {
	return s.Entries.ListByDepartment(ctx, departmentID, months)
}

func (s *Store) ListFinancialTargets(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.FinancialTarget, error) {
	return s.Targets.ListByQuarter(ctx, departmentID, quarter, year)
}

func (s *Store) ListForecastEntries(ctx context.Context, departmentID uuid.UUID, forecastYear int) ([]models.ForecastEntry, error) {
	return s.Forecasts.ListEntries(ctx, departmentID, forecastYear)
}

func (s *Store) ListActiveScenarios(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	return s.Scenarios.ListActive(ctx, ownerUserID)
}

func (s *Store) ListRocks(ctx context.Context, departmentID uuid.UUID, quarter, year int) ([]models.Rock, error) {
	return s.Rocks.ListByQuarter(ctx, departmentID, quarter, year)
}

func (s *Store) ListRockMonthlyTargets(ctx context.Context, rockIDs []uuid.UUID) ([]models.RockMonthlyTarget, error) {
	return s.Rocks.ListMonthlyTargets(ctx, rockIDs)
}

func (s *Store) UpsertTarget(ctx context.Context, target *models.FinancialTarget) error {
	return s.Targets.Upsert(ctx, target)
}

func (s *Store) UpsertFinancialEntries(ctx context.Context, entries []models.FinancialEntry) error {
	return s.Entries.Upsert(ctx, entries)
}

func (s *Store) ListScenarios(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	return s.Scenarios.ListByOwner(ctx, ownerUserID)
}

func (s *Store) GetScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (*models.PayplanScenario, error) {
	return s.Scenarios.GetByID(ctx, ownerUserID, scenarioID)
}

func (s *Store) CreateScenario(ctx context.Context, scenario *models.PayplanScenario) error {
	return s.Scenarios.Create(ctx, scenario)
}

func (s *Store) UpdateScenario(ctx context.Context, scenario *models.PayplanScenario) (bool, error) {
	return s.Scenarios.Update(ctx, scenario)
}

func (s *Store) DeleteScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (bool, error) {
	return s.Scenarios.Delete(ctx, ownerUserID, scenarioID)
}

var (
	_ timeseries.Reader        = (*Store)(nil)
	_ timeseries.TargetWriter  = (*Store)(nil)
	_ timeseries.EntryWriter   = (*Store)(nil)
	_ timeseries.ScenarioStore = (*Store)(nil)
)
