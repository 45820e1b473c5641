package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/models"
)

// TargetInput is an explicit target, a monthly figure for each month of its
// quarter. The metric is either a stored key in MetricKey, or a sub-metric
// given by ParentKey, OrderIndex and SubmetricName, which is encoded in the
// current format.
type TargetInput struct {
	DepartmentID  uuid.UUID
	MetricKey     string
	ParentKey     string
	OrderIndex    *int
	SubmetricName string
	Quarter       int
	Year          int
	Value         float64
	Direction     models.TargetDirection
}

// SetTarget upserts an explicit target and drops the department's cached
// rows so the next read sees it.
func (s *Service) SetTarget(ctx context.Context, in TargetInput) (*models.FinancialTarget, error) {
	if err := validateQuarter(in.Quarter, in.Year); err != nil {
		return nil, err
	}
	if !in.Direction.Valid() {
		return nil, fmt.Errorf("%w: target_direction must be above or below", ErrInvalidInput)
	}
	key, err := targetKey(in)
	if err != nil {
		return nil, err
	}

	dept, err := s.department(ctx, in.DepartmentID)
	if err != nil {
		return nil, err
	}

	target := &models.FinancialTarget{
		DepartmentID:    dept.ID,
		MetricKey:       key,
		Quarter:         in.Quarter,
		Year:            in.Year,
		TargetValue:     in.Value,
		TargetDirection: in.Direction,
	}
	if err := s.targets.UpsertTarget(ctx, target); err != nil {
		return nil, fmt.Errorf("upsert target: %w", err)
	}
	s.cache.Invalidate(dept.ID)

	s.logger.Info("target saved",
		slog.String("department_id", dept.ID.String()),
		slog.String("metric_key", key),
		slog.Int("quarter", in.Quarter),
		slog.Int("year", in.Year),
	)
	return target, nil
}

func targetKey(in TargetInput) (string, error) {
	if in.MetricKey != "" {
		if _, err := metrickey.Decode(in.MetricKey); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return in.MetricKey, nil
	}

	if in.ParentKey == "" || in.SubmetricName == "" {
		return "", fmt.Errorf("%w: metric_key or parent_key and name are required", ErrInvalidInput)
	}
	if in.OrderIndex == nil || *in.OrderIndex < 0 {
		return "", fmt.Errorf("%w: order_index is required for a sub-metric target", ErrInvalidInput)
	}
	key, err := metrickey.Encode(in.ParentKey, *in.OrderIndex, in.SubmetricName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return key, nil
}
