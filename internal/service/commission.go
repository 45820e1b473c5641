package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/aggregate"
	"github.com/dealerops/incentive-engine/internal/commission"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/period"
)

// CommissionQuery selects the caller's scenarios and the stores and months
// they are evaluated over.
type CommissionQuery struct {
	OwnerUserID uuid.UUID
	StoreIDs    []uuid.UUID
	Months      []string
}

// CommissionReport is the evaluated row triples of every active scenario.
type CommissionReport struct {
	OwnerUserID uuid.UUID           `json:"owner_user_id"`
	Months      []string            `json:"months"`
	Scenarios   []commission.Result `json:"scenarios"`
}

// CommissionReport evaluates the owner's active scenarios. Each scenario's
// source metrics are aggregated over the departments it names within the
// selected stores, or over every department when it names none.
func (s *Service) CommissionReport(ctx context.Context, q CommissionQuery) (*CommissionReport, error) {
	defer s.observe("commission", time.Now())

	if err := validateMonths(q.Months); err != nil {
		return nil, err
	}

	scenarios, err := s.reader.ListActiveScenarios(ctx, q.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("list active scenarios: %w", err)
	}

	report := &CommissionReport{
		OwnerUserID: q.OwnerUserID,
		Months:      append([]string(nil), q.Months...),
		Scenarios:   make([]commission.Result, 0, len(scenarios)),
	}
	if len(scenarios) == 0 {
		return report, nil
	}

	depts, err := s.departments(ctx, q.StoreIDs, nil)
	if err != nil {
		return nil, err
	}
	byDept, err := s.entriesByDepartment(ctx, departmentIDs(depts), q.Months)
	if err != nil {
		return nil, err
	}

	// One pass per department over every source metric; each scenario then
	// sums the departments in its scope.
	keys := commission.SourceMetrics(scenarios...)
	stores := aggregate.NewStoreSet(q.StoreIDs...)
	perDept := make(map[uuid.UUID]map[string]aggregate.Rollup, len(depts))
	skipped := 0
	for _, d := range depts {
		rollups := aggregate.AggregateMany(byDept[d.ID], stores, keys, q.Months)
		perDept[d.ID] = rollups
		if len(keys) > 0 {
			skipped += rollups[keys[0]].Skipped
		}
	}
	s.recordSkipped(skipped)

	// Scenarios naming the same departments share one series map.
	order := make(map[uuid.UUID]int, len(scenarios))
	groups := make(map[string][]models.PayplanScenario)
	var scopes []string
	for i, sc := range scenarios {
		order[sc.ID] = i
		scope := scopeKey(sc.DepartmentNames)
		if _, ok := groups[scope]; !ok {
			scopes = append(scopes, scope)
		}
		groups[scope] = append(groups[scope], sc)
	}
	for _, scope := range scopes {
		group := groups[scope]
		series := make(map[string]aggregate.Series, len(keys))
		for _, d := range filterByName(depts, group[0].DepartmentNames) {
			for _, key := range keys {
				series[key] = series[key].Add(perDept[d.ID][key].Values)
			}
		}
		report.Scenarios = append(report.Scenarios, commission.EvaluateAll(group, series, q.Months)...)
	}
	sort.SliceStable(report.Scenarios, func(i, j int) bool {
		return order[report.Scenarios[i].ScenarioID] < order[report.Scenarios[j].ScenarioID]
	})

	s.logger.Debug("commission report computed",
		slog.String("owner_user_id", q.OwnerUserID.String()),
		slog.Int("scenarios", len(report.Scenarios)),
		slog.Int("months", len(q.Months)),
	)
	return report, nil
}

func scopeKey(names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	return strings.Join(sorted, "\x00")
}

// entriesByDepartment is entriesFor keyed by department.
func (s *Service) entriesByDepartment(ctx context.Context, deptIDs []uuid.UUID, months []string) (map[uuid.UUID][]models.FinancialEntry, error) {
	out := make(map[uuid.UUID][]models.FinancialEntry, len(deptIDs))
	for _, year := range period.Years(months) {
		bundles, err := s.cache.Bundles(ctx, deptIDs, year)
		if err != nil {
			return nil, fmt.Errorf("load departments for %d: %w", year, err)
		}
		for id, b := range bundles {
			out[id] = append(out[id], b.Entries...)
		}
	}
	return out, nil
}
