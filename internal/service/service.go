package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/aggregate"
	"github.com/dealerops/incentive-engine/internal/cache"
	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/period"
	"github.com/dealerops/incentive-engine/internal/telemetry"
	"github.com/dealerops/incentive-engine/internal/timeseries"
)

var (
	// ErrNotFound is returned when a referenced department does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps caller mistakes such as bad periods or directions.
	ErrInvalidInput = errors.New("invalid input")
)

// Service answers metric, scorecard, rock and commission questions over the
// reader's rows, going through the cache for department data.
type Service struct {
	reader    timeseries.Reader
	targets   timeseries.TargetWriter
	entries   timeseries.EntryWriter
	scenarios timeseries.ScenarioStore
	cache     *cache.Cache
	metrics   *telemetry.Collectors
	logger    *slog.Logger
}

// New wires a Service. metrics may be nil.
func New(
	reader timeseries.Reader,
	targets timeseries.TargetWriter,
	entries timeseries.EntryWriter,
	scenarios timeseries.ScenarioStore,
	c *cache.Cache,
	metrics *telemetry.Collectors,
) *Service {
	return &Service{
		reader:    reader,
		targets:   targets,
		entries:   entries,
		scenarios: scenarios,
		cache:     c,
		metrics:   metrics,
		logger:    slog.Default().With(slog.String("service", "incentive-engine")),
	}
}

// Refresh drops cached rows for one department, or for all when id is nil.
func (s *Service) Refresh(departmentID *uuid.UUID) {
	if departmentID == nil {
		s.cache.InvalidateAll()
		return
	}
	s.cache.Invalidate(*departmentID)
}

// Invalidate satisfies the change listener's invalidator contract.
func (s *Service) Invalidate(departmentID uuid.UUID) {
	s.cache.Invalidate(departmentID)
}

// InvalidateAll satisfies the change listener's invalidator contract.
func (s *Service) InvalidateAll() {
	s.cache.InvalidateAll()
}

// AggregateQuery selects a metric over a set of stores and months.
type AggregateQuery struct {
	StoreIDs []uuid.UUID
	// DepartmentNames restricts the rollup to departments with these names.
	// Empty means every department of the selected stores.
	DepartmentNames []string
	MetricKey       string
	Months          []string
}

// Aggregate sums a metric across stores per month.
func (s *Service) Aggregate(ctx context.Context, q AggregateQuery) (*aggregate.Rollup, error) {
	defer s.observe("aggregate", time.Now())

	if q.MetricKey == "" {
		return nil, fmt.Errorf("%w: metric_key is required", ErrInvalidInput)
	}
	if err := validateMonths(q.Months); err != nil {
		return nil, err
	}

	depts, err := s.departments(ctx, q.StoreIDs, q.DepartmentNames)
	if err != nil {
		return nil, err
	}

	entries, err := s.entriesFor(ctx, departmentIDs(depts), q.Months)
	if err != nil {
		return nil, err
	}

	rollup := aggregate.Summarize(entries, aggregate.NewStoreSet(q.StoreIDs...), q.MetricKey, q.Months)
	s.recordSkipped(rollup.Skipped)
	return &rollup, nil
}

func (s *Service) department(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	dept, err := s.reader.GetDepartment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	if dept == nil {
		return nil, fmt.Errorf("%w: department %s", ErrNotFound, id)
	}
	return dept, nil
}

func (s *Service) departments(ctx context.Context, storeIDs []uuid.UUID, names []string) ([]models.Department, error) {
	if len(storeIDs) == 0 {
		return nil, nil
	}
	depts, err := s.reader.ListDepartments(ctx, storeIDs)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return filterByName(depts, names), nil
}

// entriesFor gathers the departments' entries for months, which may span years.
func (s *Service) entriesFor(ctx context.Context, deptIDs []uuid.UUID, months []string) ([]models.FinancialEntry, error) {
	var entries []models.FinancialEntry
	for _, year := range period.Years(months) {
		bundles, err := s.cache.Bundles(ctx, deptIDs, year)
		if err != nil {
			return nil, fmt.Errorf("load departments for %d: %w", year, err)
		}
		for _, b := range bundles {
			entries = append(entries, b.Entries...)
		}
	}
	return entries, nil
}

func (s *Service) observe(report string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

func (s *Service) recordSkipped(n int) {
	if n == 0 {
		return
	}
	s.logger.Warn("skipped financial entries with malformed metric keys", slog.Int("count", n))
	if s.metrics != nil {
		s.metrics.SkippedRows.Add(float64(n))
	}
}

func filterByName(depts []models.Department, names []string) []models.Department {
	if len(names) == 0 {
		return depts
	}
	out := make([]models.Department, 0, len(depts))
	for _, d := range depts {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), d.Name) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func departmentIDs(depts []models.Department) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(depts))
	for _, d := range depts {
		ids = append(ids, d.ID)
	}
	return ids
}

func validateMonths(months []string) error {
	if len(months) == 0 {
		return fmt.Errorf("%w: at least one month is required", ErrInvalidInput)
	}
	for _, m := range months {
		if _, err := period.ParseMonth(m); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func validateQuarter(quarter, year int) error {
	if !period.ValidQuarter(quarter) {
		return fmt.Errorf("%w: quarter must be 1-4, got %d", ErrInvalidInput, quarter)
	}
	if year < 1900 || year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidInput, year)
	}
	return nil
}
