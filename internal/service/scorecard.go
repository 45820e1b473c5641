package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/aggregate"
	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/performance"
	"github.com/dealerops/incentive-engine/internal/period"
	"github.com/dealerops/incentive-engine/internal/targets"
)

// ScoreLine is one actual-vs-target comparison. Actual is nil when no row
// reported a value; Target is nil when nothing resolved.
type ScoreLine struct {
	Period   string              `json:"period"`
	Actual   *float64            `json:"actual"`
	Target   *targets.Resolution `json:"target"`
	Variance *float64            `json:"variance,omitempty"`
	Status   performance.Status  `json:"status"`
}

// MetricScore holds the monthly lines and quarterly summary of one metric.
type MetricScore struct {
	MetricKey string      `json:"metric_key"`
	Months    []ScoreLine `json:"months"`
	Quarter   ScoreLine   `json:"quarter"`
}

// Scorecard is a department's metric performance for one quarter.
type Scorecard struct {
	DepartmentID uuid.UUID     `json:"department_id"`
	Quarter      int           `json:"quarter"`
	Year         int           `json:"year"`
	Metrics      []MetricScore `json:"metrics"`
}

// ScorecardQuery selects the metrics and direction for a scorecard.
type ScorecardQuery struct {
	DepartmentID uuid.UUID
	Quarter      int
	Year         int
	// MetricKeys defaults to every metric with a target or an entry in the quarter.
	MetricKeys []string
	// Direction applies to forecast-derived targets. Defaults to above.
	Direction models.TargetDirection
}

// Scorecard classifies each metric month by month and for the whole quarter.
func (s *Service) Scorecard(ctx context.Context, q ScorecardQuery) (*Scorecard, error) {
	defer s.observe("scorecard", time.Now())

	if err := validateQuarter(q.Quarter, q.Year); err != nil {
		return nil, err
	}
	if q.Direction == "" {
		q.Direction = models.DirectionAbove
	}
	if !q.Direction.Valid() {
		return nil, fmt.Errorf("%w: direction must be above or below", ErrInvalidInput)
	}

	dept, err := s.department(ctx, q.DepartmentID)
	if err != nil {
		return nil, err
	}

	bundle, err := s.cache.Bundle(ctx, dept.ID, q.Year)
	if err != nil {
		return nil, fmt.Errorf("load department: %w", err)
	}

	months, _ := period.QuarterMonths(q.Quarter, q.Year)
	keys := q.MetricKeys
	if len(keys) == 0 {
		keys = discoverMetricKeys(bundle.Entries, bundle.Targets, q.Quarter, months)
	}

	rollups := aggregate.AggregateMany(bundle.Entries, aggregate.NewStoreSet(dept.StoreID), keys, months)
	resolver := targets.NewResolver(bundle.Targets, nil, bundle.Forecasts)

	card := &Scorecard{
		DepartmentID: dept.ID,
		Quarter:      q.Quarter,
		Year:         q.Year,
		Metrics:      make([]MetricScore, 0, len(keys)),
	}

	skipped := 0
	for _, key := range keys {
		rollup := rollups[key]
		skipped = rollup.Skipped

		score := MetricScore{MetricKey: key, Months: make([]ScoreLine, 0, len(months))}
		for _, m := range months {
			score.Months = append(score.Months,
				scoreLine(m, monthActual(rollup, m), resolver.ResolveMonth(dept.ID, key, m, q.Direction)))
		}
		score.Quarter = scoreLine(
			fmt.Sprintf("Q%d %d", q.Quarter, q.Year),
			quarterActual(rollup, months),
			resolver.ResolveQuarter(dept.ID, key, q.Quarter, q.Year, q.Direction),
		)
		card.Metrics = append(card.Metrics, score)
	}
	s.recordSkipped(skipped)

	s.logger.Debug("scorecard computed",
		slog.String("department_id", dept.ID.String()),
		slog.Int("quarter", q.Quarter),
		slog.Int("year", q.Year),
		slog.Int("metrics", len(card.Metrics)),
	)
	return card, nil
}

func scoreLine(label string, actual *float64, target *targets.Resolution) ScoreLine {
	line := ScoreLine{Period: label, Actual: actual, Target: target, Status: performance.StatusPending}
	if target == nil {
		return line
	}
	line.Status = performance.Classify(actual, target.Value, target.Direction)
	if actual != nil {
		if v, ok := performance.Variance(*actual, target.Value); ok {
			line.Variance = &v
		}
	}
	return line
}

func monthActual(r aggregate.Rollup, month string) *float64 {
	if !r.HasData(month) {
		return nil
	}
	v := r.Values.Get(month)
	return &v
}

// quarterActual is nil only when no month of the quarter reported.
func quarterActual(r aggregate.Rollup, months []string) *float64 {
	for _, m := range months {
		if r.HasData(m) {
			v := r.Values.Total(months)
			return &v
		}
	}
	return nil
}

// discoverMetricKeys lists, by identity, the metrics that have a target for
// quarter or an entry in months. Sub-metrics are reported in their legacy
// form since the order index does not take part in matching.
func discoverMetricKeys(entries []models.FinancialEntry, financialTargets []models.FinancialTarget, quarter int, months []string) []string {
	inRange := make(map[string]bool, len(months))
	for _, m := range months {
		inRange[m] = true
	}

	seen := make(map[string]string)
	add := func(raw string) {
		k, err := metrickey.Decode(raw)
		if err != nil {
			return
		}
		id := k.Identity()
		if _, ok := seen[id]; !ok {
			k.OrderIndex = nil
			seen[id] = k.String()
		}
	}

	for _, t := range financialTargets {
		if t.Quarter == quarter {
			add(t.MetricKey)
		}
	}
	for _, e := range entries {
		if inRange[e.Month] {
			add(e.MetricKey)
		}
	}

	keys := make([]string, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
