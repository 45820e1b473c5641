package timeseries

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/models"
)

// MemoryStore is an in-process Reader/TargetWriter/EntryWriter, used for
// tests and local runs without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	departments map[uuid.UUID]models.Department
	entries     map[entryKey]models.FinancialEntry
	targets     map[targetKey]models.FinancialTarget
	forecasts   []models.ForecastEntry
	scenarios   []models.PayplanScenario
	rocks       []models.Rock
	rockTargets []models.RockMonthlyTarget
	reads       int
}

type entryKey struct {
	department uuid.UUID
	metric     string
	month      string
}

type targetKey struct {
	department uuid.UUID
	metric     string
	quarter    int
	year       int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		departments: make(map[uuid.UUID]models.Department),
		entries:     make(map[entryKey]models.FinancialEntry),
		targets:     make(map[targetKey]models.FinancialTarget),
	}
}

func (s *MemoryStore) AddDepartment(d models.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

func (s *MemoryStore) AddForecastEntries(entries ...models.ForecastEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = append(s.forecasts, entries...)
}

func (s *MemoryStore) AddScenario(sc models.PayplanScenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, sc)
}

func (s *MemoryStore) AddRock(r models.Rock, monthly ...models.RockMonthlyTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rocks = append(s.rocks, r)
	s.rockTargets = append(s.rockTargets, monthly...)
}

// Reads counts calls to ListFinancialEntries, letting tests observe caching.
func (s *MemoryStore) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

func (s *MemoryStore) GetDepartment(_ context.Context, id uuid.UUID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *MemoryStore) ListDepartments(_ context.Context, storeIDs []uuid.UUID) ([]models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(storeIDs))
	for _, id := range storeIDs {
		want[id] = true
	}
	out := make([]models.Department, 0)
	for _, d := range s.departments {
		if want[d.StoreID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListFinancialEntries(_ context.Context, departmentID uuid.UUID, months []string) ([]models.FinancialEntry, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	inRange := make(map[string]bool, len(months))
	for _, m := range months {
		inRange[m] = true
	}
	out := make([]models.FinancialEntry, 0)
	for k, e := range s.entries {
		if k.department == departmentID && inRange[k.month] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListFinancialTargets(_ context.Context, departmentID uuid.UUID, quarter, year int) ([]models.FinancialTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FinancialTarget, 0)
	for k, t := range s.targets {
		if k.department == departmentID && k.quarter == quarter && k.year == year {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListForecastEntries(_ context.Context, departmentID uuid.UUID, forecastYear int) ([]models.ForecastEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ForecastEntry, 0)
	for _, fe := range s.forecasts {
		if fe.DepartmentID == departmentID && fe.ForecastYear == forecastYear {
			out = append(out, fe)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListActiveScenarios(_ context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PayplanScenario, 0)
	for _, sc := range s.scenarios {
		if sc.OwnerUserID == ownerUserID && sc.IsActive {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRocks(_ context.Context, departmentID uuid.UUID, quarter, year int) ([]models.Rock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rock, 0)
	for _, r := range s.rocks {
		if r.DepartmentID == departmentID && r.Quarter == quarter && r.Year == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRockMonthlyTargets(_ context.Context, rockIDs []uuid.UUID) ([]models.RockMonthlyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(rockIDs))
	for _, id := range rockIDs {
		want[id] = true
	}
	out := make([]models.RockMonthlyTarget, 0)
	for _, t := range s.rockTargets {
		if want[t.RockID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertTarget(_ context.Context, t *models.FinancialTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := targetKey{t.DepartmentID, t.MetricKey, t.Quarter, t.Year}
	now := time.Now()
	if existing, ok := s.targets[k]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	s.targets[k] = *t
	return nil
}

func (s *MemoryStore) UpsertFinancialEntries(_ context.Context, entries []models.FinancialEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if d, ok := s.departments[e.DepartmentID]; ok {
			e.StoreID = d.StoreID
		}
		k := entryKey{e.DepartmentID, e.MetricKey, e.Month}
		if existing, ok := s.entries[k]; ok {
			e.ID = existing.ID
		} else if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		s.entries[k] = e
	}
	return nil
}

func (s *MemoryStore) ListScenarios(_ context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PayplanScenario, 0)
	for _, sc := range s.scenarios {
		if sc.OwnerUserID == ownerUserID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetScenario(_ context.Context, ownerUserID, scenarioID uuid.UUID) (*models.PayplanScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sc := range s.scenarios {
		if sc.ID == scenarioID && sc.OwnerUserID == ownerUserID {
			return &sc, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateScenario(_ context.Context, sc *models.PayplanScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	now := time.Now()
	sc.CreatedAt, sc.UpdatedAt = now, now
	s.scenarios = append(s.scenarios, *sc)
	return nil
}

func (s *MemoryStore) UpdateScenario(_ context.Context, sc *models.PayplanScenario) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.scenarios {
		if existing.ID == sc.ID && existing.OwnerUserID == sc.OwnerUserID {
			sc.CreatedAt = existing.CreatedAt
			sc.UpdatedAt = time.Now()
			s.scenarios[i] = *sc
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteScenario(_ context.Context, ownerUserID, scenarioID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.scenarios {
		if existing.ID == scenarioID && existing.OwnerUserID == ownerUserID {
			s.scenarios = append(s.scenarios[:i], s.scenarios[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

var (
	_ Reader        = (*MemoryStore)(nil)
	_ TargetWriter  = (*MemoryStore)(nil)
	_ EntryWriter   = (*MemoryStore)(nil)
	_ ScenarioStore = (*MemoryStore)(nil)
)
