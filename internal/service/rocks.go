package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/aggregate"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/performance"
	"github.com/dealerops/incentive-engine/internal/period"
	"github.com/dealerops/incentive-engine/internal/targets"
)

// RockScore is a rock with its metric progress. Unlinked rocks carry only
// the rock itself.
type RockScore struct {
	Rock      models.Rock `json:"rock"`
	Linked    bool        `json:"linked"`
	MetricKey string      `json:"metric_key,omitempty"`
	Months    []ScoreLine `json:"months,omitempty"`
	Quarter   *ScoreLine  `json:"quarter,omitempty"`
}

// RockReport lists a department's rocks for a quarter.
type RockReport struct {
	DepartmentID uuid.UUID   `json:"department_id"`
	Quarter      int         `json:"quarter"`
	Year         int         `json:"year"`
	Rocks        []RockScore `json:"rocks"`
}

// RockReport scores every linked rock of the department against its monthly
// targets or forecast, and fills in its progress percentage.
func (s *Service) RockReport(ctx context.Context, departmentID uuid.UUID, quarter, year int) (*RockReport, error) {
	defer s.observe("rocks", time.Now())

	if err := validateQuarter(quarter, year); err != nil {
		return nil, err
	}
	dept, err := s.department(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	rocks, err := s.reader.ListRocks(ctx, dept.ID, quarter, year)
	if err != nil {
		return nil, fmt.Errorf("list rocks: %w", err)
	}

	report := &RockReport{DepartmentID: dept.ID, Quarter: quarter, Year: year, Rocks: make([]RockScore, 0, len(rocks))}
	if len(rocks) == 0 {
		return report, nil
	}

	var linkedIDs []uuid.UUID
	var keys []string
	for _, r := range rocks {
		if key, ok := targets.RockMetricKey(r); ok {
			linkedIDs = append(linkedIDs, r.ID)
			keys = append(keys, key)
		}
	}

	var rockTargets []models.RockMonthlyTarget
	if len(linkedIDs) > 0 {
		rockTargets, err = s.reader.ListRockMonthlyTargets(ctx, linkedIDs)
		if err != nil {
			return nil, fmt.Errorf("list rock monthly targets: %w", err)
		}
	}

	bundle, err := s.cache.Bundle(ctx, dept.ID, year)
	if err != nil {
		return nil, fmt.Errorf("load department: %w", err)
	}

	months, _ := period.QuarterMonths(quarter, year)
	rollups := aggregate.AggregateMany(bundle.Entries, aggregate.NewStoreSet(dept.StoreID), keys, months)
	resolver := targets.NewResolver(bundle.Targets, rockTargets, bundle.Forecasts)

	for _, r := range rocks {
		key, ok := targets.RockMetricKey(r)
		if !ok {
			report.Rocks = append(report.Rocks, RockScore{Rock: r})
			continue
		}
		rollup := rollups[key]

		score := RockScore{Rock: r, Linked: true, MetricKey: key, Months: make([]ScoreLine, 0, len(months))}
		for _, m := range months {
			score.Months = append(score.Months, scoreLine(m, monthActual(rollup, m), resolver.ResolveRockMonth(r, m)))
		}

		actual := quarterActual(rollup, months)
		target := resolver.ResolveRockQuarter(r)
		quarterLine := scoreLine(fmt.Sprintf("Q%d %d", quarter, year), actual, target)
		score.Quarter = &quarterLine

		if actual != nil && target != nil {
			score.Rock.ProgressPercentage = performance.Progress(*actual, target.Value, target.Direction)
		}
		report.Rocks = append(report.Rocks, score)
	}

	return report, nil
}
