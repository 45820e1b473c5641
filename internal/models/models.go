package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetDirection says whether meeting a target means at-or-above or at-or-below it.
type TargetDirection string

const (
	DirectionAbove TargetDirection = "above"
	DirectionBelow TargetDirection = "below"
)

// Valid reports whether d is one of the known directions.
func (d TargetDirection) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Store is a single dealership location.
// DB columns: id, name, group_name, created_at
type Store struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	GroupName string    `json:"group_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Department is a reporting unit (Service, Parts, Body Shop...) within a store.
// DB columns: id, store_id, name, created_at
type Department struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// FinancialEntry is one monthly fact for a department and metric key.
// A nil Value means no data, which is distinct from zero.
// DB columns: id, department_id, metric_name, month, value, created_at, updated_at
// StoreID is joined from departments.
type FinancialEntry struct {
	ID           uuid.UUID `json:"id"`
	DepartmentID uuid.UUID `json:"department_id"`
	StoreID      uuid.UUID `json:"store_id"`
	MetricKey    string    `json:"metric_key"`
	Month        string    `json:"month"`
	Value        *float64  `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FinancialTarget is a quarterly target, unique per department/metric/quarter/year.
// DB columns: id, department_id, metric_name, quarter, year, target_value,
//
//	target_direction, created_at, updated_at
type FinancialTarget struct {
	ID              uuid.UUID       `json:"id"`
	DepartmentID    uuid.UUID       `json:"department_id"`
	MetricKey       string          `json:"metric_key"`
	Quarter         int             `json:"quarter"`
	Year            int             `json:"year"`
	TargetValue     float64         `json:"target_value"`
	TargetDirection TargetDirection `json:"target_direction"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ForecastEntry is one month of a generated forecast.
// DB columns (forecast_entries): id, forecast_id, metric_name, month, forecast_value
// DepartmentID and ForecastYear are joined from forecasts.
type ForecastEntry struct {
	ID            uuid.UUID `json:"id"`
	ForecastID    uuid.UUID `json:"forecast_id"`
	DepartmentID  uuid.UUID `json:"department_id"`
	ForecastYear  int       `json:"forecast_year"`
	MetricKey     string    `json:"metric_key"`
	Month         string    `json:"month"`
	ForecastValue *float64  `json:"forecast_value"`
}

// CommissionRule is a rate applied to an aggregated source metric.
// Rules are embedded in their scenario and stored with it as JSONB.
type CommissionRule struct {
	SourceMetric string   `json:"source_metric"`
	Rate         float64  `json:"rate"`
	MinThreshold *float64 `json:"min_threshold"`
	MaxThreshold *float64 `json:"max_threshold"`
	Description  string   `json:"description,omitempty"`
}

// PayplanScenario is a user-owned compensation plan.
// DB columns: id, owner_user_id, name, base_salary_annual, rules,
//
//	department_names, is_active, created_at, updated_at
type PayplanScenario struct {
	ID               uuid.UUID        `json:"id"`
	OwnerUserID      uuid.UUID        `json:"owner_user_id"`
	Name             string           `json:"name"`
	BaseSalaryAnnual float64          `json:"base_salary_annual"`
	Rules            []CommissionRule `json:"rules"`
	DepartmentNames  []string         `json:"department_names"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// LinkedMetricType says what a rock tracks, if anything.
type LinkedMetricType string

const (
	LinkedMetric    LinkedMetricType = "metric"
	LinkedSubMetric LinkedMetricType = "submetric"
)

// Rock is a quarterly departmental objective, optionally linked to a metric.
// DB columns: id, department_id, year, quarter, title, linked_metric_type,
//
//	linked_metric_key, linked_parent_metric_key, linked_submetric_name,
//	target_direction, progress_percentage, status, created_at, updated_at
type Rock struct {
	ID                    uuid.UUID         `json:"id"`
	DepartmentID          uuid.UUID         `json:"department_id"`
	Year                  int               `json:"year"`
	Quarter               int               `json:"quarter"`
	Title                 string            `json:"title"`
	LinkedMetricType      *LinkedMetricType `json:"linked_metric_type,omitempty"`
	LinkedMetricKey       *string           `json:"linked_metric_key,omitempty"`
	LinkedParentMetricKey *string           `json:"linked_parent_metric_key,omitempty"`
	LinkedSubmetricName   *string           `json:"linked_submetric_name,omitempty"`
	TargetDirection       TargetDirection   `json:"target_direction"`
	ProgressPercentage    float64           `json:"progress_percentage"`
	Status                string            `json:"status"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// IsLinked reports whether the rock tracks a metric.
func (r Rock) IsLinked() bool {
	return r.LinkedMetricType != nil
}

// RockMonthlyTarget is an explicit per-month target for a linked rock.
// DB columns: id, rock_id, month, target_value
type RockMonthlyTarget struct {
	ID          uuid.UUID `json:"id"`
	RockID      uuid.UUID `json:"rock_id"`
	Month       string    `json:"month"`
	TargetValue float64   `json:"target_value"`
}

// ImportBatch records a CSV import of financial entries.
// DB columns: id, department_id, user_id, filename, row_count, skipped_count,
//
//	warnings, idempotency_key, created_at
type ImportBatch struct {
	ID             uuid.UUID `json:"import_id"`
	DepartmentID   uuid.UUID `json:"department_id"`
	UserID         uuid.UUID `json:"user_id"`
	Filename       string    `json:"filename"`
	RowCount       int       `json:"row_count"`
	SkippedCount   int       `json:"skipped_count"`
	Warnings       []string  `json:"warnings"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
