package commission

import (
	"math"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/aggregate"
	"github.com/dealerops/incentive-engine/internal/models"
)

// RowKind names one of the three rows emitted per rule.
type RowKind string

const (
	KindCommission RowKind = "commission"
	KindBaseSalary RowKind = "base_salary"
	KindTotalComp  RowKind = "total_comp"
)

// MonthValue is a single cell of a row, kept in month order for rendering.
type MonthValue struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Row is one output series of a rule evaluation.
type Row struct {
	ScenarioID   uuid.UUID    `json:"scenario_id"`
	ScenarioName string       `json:"scenario_name"`
	RuleIndex    int          `json:"rule_index"`
	SourceMetric string       `json:"source_metric"`
	Description  string       `json:"description,omitempty"`
	Kind         RowKind      `json:"kind"`
	Values       []MonthValue `json:"values"`
	Total        float64      `json:"total"`
}

// Value returns the row's value for month, or zero.
func (r Row) Value(month string) float64 {
	for _, mv := range r.Values {
		if mv.Month == month {
			return mv.Value
		}
	}
	return 0
}

// Result groups the rows of one scenario.
type Result struct {
	ScenarioID   uuid.UUID `json:"scenario_id"`
	ScenarioName string    `json:"scenario_name"`
	MonthlyBase  float64   `json:"monthly_base"`
	Months       []string  `json:"months"`
	Rows         []Row     `json:"rows"`
}

// RuleCommission applies one rule to one month's aggregated metric value.
// Below the minimum nothing is paid; above the maximum the payout is
// capped at maxThreshold*rate. Commission is never negative.
func RuleCommission(rule models.CommissionRule, metricValue float64) float64 {
	var commission float64
	switch {
	case rule.MinThreshold != nil && metricValue < *rule.MinThreshold:
		commission = 0
	case rule.MaxThreshold != nil && metricValue > *rule.MaxThreshold:
		commission = *rule.MaxThreshold * rule.Rate
	default:
		commission = metricValue * rule.Rate
	}
	return math.Max(0, commission)
}

// MonthlyBase is the annual base salary spread evenly over twelve months.
func MonthlyBase(scenario models.PayplanScenario) float64 {
	return scenario.BaseSalaryAnnual / 12
}

// Evaluate computes the commission, base salary and total compensation rows
// of every rule in scenario. metrics holds the aggregated series per
// source metric; a metric with no series counts as zero in every month.
// It returns nil for inactive scenarios and scenarios without rules.
func Evaluate(scenario models.PayplanScenario, metrics map[string]aggregate.Series, months []string) *Result {
	if !scenario.IsActive || len(scenario.Rules) == 0 {
		return nil
	}

	base := MonthlyBase(scenario)
	result := &Result{
		ScenarioID:   scenario.ID,
		ScenarioName: scenario.Name,
		MonthlyBase:  base,
		Months:       append([]string(nil), months...),
		Rows:         make([]Row, 0, len(scenario.Rules)*3),
	}

	for idx, rule := range scenario.Rules {
		series := metrics[rule.SourceMetric]

		commissionRow := newRow(scenario, idx, rule, KindCommission, len(months))
		baseRow := newRow(scenario, idx, rule, KindBaseSalary, len(months))
		totalRow := newRow(scenario, idx, rule, KindTotalComp, len(months))

		for _, month := range months {
			c := RuleCommission(rule, series.Get(month))
			commissionRow.append(month, c)
			baseRow.append(month, base)
			totalRow.append(month, c+base)
		}

		result.Rows = append(result.Rows, commissionRow.Row, baseRow.Row, totalRow.Row)
	}

	return result
}

// EvaluateAll evaluates each scenario, dropping the ones Evaluate skips.
func EvaluateAll(scenarios []models.PayplanScenario, metrics map[string]aggregate.Series, months []string) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		if r := Evaluate(s, metrics, months); r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// SourceMetrics lists the distinct source metrics referenced by the rules
// of the given scenarios, in first-seen order.
func SourceMetrics(scenarios ...models.PayplanScenario) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range scenarios {
		for _, r := range s.Rules {
			if !seen[r.SourceMetric] {
				seen[r.SourceMetric] = true
				keys = append(keys, r.SourceMetric)
			}
		}
	}
	return keys
}

type rowBuilder struct {
	Row
}

func newRow(s models.PayplanScenario, idx int, rule models.CommissionRule, kind RowKind, n int) *rowBuilder {
	return &rowBuilder{Row: Row{
		ScenarioID:   s.ID,
		ScenarioName: s.Name,
		RuleIndex:    idx,
		SourceMetric: rule.SourceMetric,
		Description:  rule.Description,
		Kind:         kind,
		Values:       make([]MonthValue, 0, n),
	}}
}

func (b *rowBuilder) append(month string, v float64) {
	b.Values = append(b.Values, MonthValue{Month: month, Value: v})
	b.Total += v
}
