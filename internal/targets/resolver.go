package targets

import (
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/period"
)

// Source tells where a resolved target came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceForecast Source = "forecast"
)

// Resolution is an effective target for a metric and period.
type Resolution struct {
	Value     float64                `json:"value"`
	Direction models.TargetDirection `json:"direction"`
	Source    Source                 `json:"source"`
}

type quarterKey struct {
	department uuid.UUID
	metric     string
	quarter    int
	year       int
}

type monthKey struct {
	department uuid.UUID
	metric     string
	month      string
}

type rockMonthKey struct {
	rock  uuid.UUID
	month string
}

// Resolver answers target lookups over rows already loaded from the reader.
// Metric keys are compared by identity.
type Resolver struct {
	targets     map[quarterKey]models.FinancialTarget
	rockTargets map[rockMonthKey]float64
	forecasts   map[monthKey]float64
}

// NewResolver indexes the given rows. Rows whose metric key does not decode
// are dropped, as are forecast rows without a value.
func NewResolver(
	financialTargets []models.FinancialTarget,
	rockTargets []models.RockMonthlyTarget,
	forecasts []models.ForecastEntry,
) *Resolver {
	r := &Resolver{
		targets:     make(map[quarterKey]models.FinancialTarget, len(financialTargets)),
		rockTargets: make(map[rockMonthKey]float64, len(rockTargets)),
		forecasts:   make(map[monthKey]float64, len(forecasts)),
	}

	for _, t := range financialTargets {
		id, err := metrickey.Normalize(t.MetricKey)
		if err != nil {
			continue
		}
		r.targets[quarterKey{t.DepartmentID, id, t.Quarter, t.Year}] = t
	}

	for _, t := range rockTargets {
		r.rockTargets[rockMonthKey{t.RockID, t.Month}] = t.TargetValue
	}

	for _, fe := range forecasts {
		if fe.ForecastValue == nil {
			continue
		}
		id, err := metrickey.Normalize(fe.MetricKey)
		if err != nil {
			continue
		}
		r.forecasts[monthKey{fe.DepartmentID, id, fe.Month}] = *fe.ForecastValue
	}

	return r
}

// ResolveQuarter returns the quarterly target for a department metric. An
// explicit target is a monthly figure, so the quarter's target is that value
// once per month of the quarter, matching the summed actual. Otherwise it is
// the sum of the quarter's forecast months, otherwise nil. direction applies
// to forecast targets.
func (r *Resolver) ResolveQuarter(departmentID uuid.UUID, metricKey string, quarter, year int, direction models.TargetDirection) *Resolution {
	id, err := metrickey.Normalize(metricKey)
	if err != nil {
		return nil
	}
	months, err := period.QuarterMonths(quarter, year)
	if err != nil {
		return nil
	}

	if t, ok := r.targets[quarterKey{departmentID, id, quarter, year}]; ok {
		return &Resolution{
			Value:     t.TargetValue * float64(len(months)),
			Direction: directionOr(t.TargetDirection, direction),
			Source:    SourceManual,
		}
	}
	return r.forecastSum(departmentID, id, months, direction)
}

// ResolveMonth returns the target for one month of a department metric. An
// explicit quarterly target applies to each of its months; otherwise the
// month's forecast value is used.
func (r *Resolver) ResolveMonth(departmentID uuid.UUID, metricKey, month string, direction models.TargetDirection) *Resolution {
	id, err := metrickey.Normalize(metricKey)
	if err != nil {
		return nil
	}
	quarter, year, err := period.QuarterOf(month)
	if err != nil {
		return nil
	}

	if t, ok := r.targets[quarterKey{departmentID, id, quarter, year}]; ok {
		return &Resolution{Value: t.TargetValue, Direction: directionOr(t.TargetDirection, direction), Source: SourceManual}
	}

	if v, ok := r.forecasts[monthKey{departmentID, id, month}]; ok {
		return &Resolution{Value: v, Direction: directionOr(direction, models.DirectionAbove), Source: SourceForecast}
	}
	return nil
}

// ResolveRockMonth returns a linked rock's target for month: its own monthly
// target, else the forecast for the rock's metric. Unlinked rocks resolve
// to nil.
func (r *Resolver) ResolveRockMonth(rock models.Rock, month string) *Resolution {
	id, ok := RockMetricIdentity(rock)
	if !ok {
		return nil
	}
	direction := directionOr(rock.TargetDirection, models.DirectionAbove)

	if v, ok := r.rockTargets[rockMonthKey{rock.ID, month}]; ok {
		return &Resolution{Value: v, Direction: direction, Source: SourceManual}
	}
	if v, ok := r.forecasts[monthKey{rock.DepartmentID, id, month}]; ok {
		return &Resolution{Value: v, Direction: direction, Source: SourceForecast}
	}
	return nil
}

// ResolveRockQuarter sums the rock's monthly targets over its quarter, or
// failing that, the forecast months of its metric.
func (r *Resolver) ResolveRockQuarter(rock models.Rock) *Resolution {
	id, ok := RockMetricIdentity(rock)
	if !ok {
		return nil
	}
	months, err := period.QuarterMonths(rock.Quarter, rock.Year)
	if err != nil {
		return nil
	}
	direction := directionOr(rock.TargetDirection, models.DirectionAbove)

	var (
		sum   float64
		found bool
	)
	for _, m := range months {
		if v, ok := r.rockTargets[rockMonthKey{rock.ID, m}]; ok {
			sum += v
			found = true
		}
	}
	if found {
		return &Resolution{Value: sum, Direction: direction, Source: SourceManual}
	}
	return r.forecastSum(rock.DepartmentID, id, months, direction)
}

func (r *Resolver) forecastSum(departmentID uuid.UUID, identity string, months []string, direction models.TargetDirection) *Resolution {
	var (
		sum   float64
		found bool
	)
	for _, m := range months {
		if v, ok := r.forecasts[monthKey{departmentID, identity, m}]; ok {
			sum += v
			found = true
		}
	}
	if !found {
		return nil
	}
	return &Resolution{Value: sum, Direction: directionOr(direction, models.DirectionAbove), Source: SourceForecast}
}

// RockMetricKey returns the stored-key form of the metric a rock tracks.
// Sub-metric rocks are rebuilt from their parent key and sub-metric name.
func RockMetricKey(rock models.Rock) (string, bool) {
	if !rock.IsLinked() {
		return "", false
	}
	switch *rock.LinkedMetricType {
	case models.LinkedSubMetric:
		if rock.LinkedParentMetricKey == nil || rock.LinkedSubmetricName == nil {
			// Older rocks stored the full encoded key instead.
			if rock.LinkedMetricKey != nil && *rock.LinkedMetricKey != "" {
				return *rock.LinkedMetricKey, true
			}
			return "", false
		}
		return metrickey.SubMetric(*rock.LinkedParentMetricKey, nil, *rock.LinkedSubmetricName).String(), true
	default:
		if rock.LinkedMetricKey == nil || *rock.LinkedMetricKey == "" {
			return "", false
		}
		return *rock.LinkedMetricKey, true
	}
}

// RockMetricIdentity is RockMetricKey normalized for matching.
func RockMetricIdentity(rock models.Rock) (string, bool) {
	if rock.IsLinked() && *rock.LinkedMetricType == models.LinkedSubMetric &&
		rock.LinkedParentMetricKey != nil && rock.LinkedSubmetricName != nil {
		if *rock.LinkedParentMetricKey == "" || *rock.LinkedSubmetricName == "" {
			return "", false
		}
		return metrickey.SubMetricIdentity(*rock.LinkedParentMetricKey, *rock.LinkedSubmetricName), true
	}
	key, ok := RockMetricKey(rock)
	if !ok {
		return "", false
	}
	id, err := metrickey.Normalize(key)
	if err != nil {
		return "", false
	}
	return id, true
}

func directionOr(d, fallback models.TargetDirection) models.TargetDirection {
	if d.Valid() {
		return d
	}
	return fallback
}
