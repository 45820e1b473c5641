package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/models"
)

// ListScenarios returns every scenario of the owner, active or not.
func (s *Service) ListScenarios(ctx context.Context, ownerUserID uuid.UUID) ([]models.PayplanScenario, error) {
	scenarios, err := s.scenarios.ListScenarios(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return scenarios, nil
}

func (s *Service) GetScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) (*models.PayplanScenario, error) {
	sc, err := s.scenarios.GetScenario(ctx, ownerUserID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("get scenario: %w", err)
	}
	if sc == nil {
		return nil, fmt.Errorf("%w: scenario %s", ErrNotFound, scenarioID)
	}
	return sc, nil
}

// CreateScenario stores a new scenario owned by sc.OwnerUserID.
func (s *Service) CreateScenario(ctx context.Context, sc *models.PayplanScenario) error {
	if err := validateScenario(sc); err != nil {
		return err
	}
	sc.ID = uuid.New()
	if err := s.scenarios.CreateScenario(ctx, sc); err != nil {
		return fmt.Errorf("create scenario: %w", err)
	}
	return nil
}

// UpdateScenario replaces a scenario, rules included.
func (s *Service) UpdateScenario(ctx context.Context, sc *models.PayplanScenario) error {
	if err := validateScenario(sc); err != nil {
		return err
	}
	ok, err := s.scenarios.UpdateScenario(ctx, sc)
	if err != nil {
		return fmt.Errorf("update scenario: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: scenario %s", ErrNotFound, sc.ID)
	}
	return nil
}

func (s *Service) DeleteScenario(ctx context.Context, ownerUserID, scenarioID uuid.UUID) error {
	ok, err := s.scenarios.DeleteScenario(ctx, ownerUserID, scenarioID)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: scenario %s", ErrNotFound, scenarioID)
	}
	return nil
}

func validateScenario(sc *models.PayplanScenario) error {
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if sc.OwnerUserID == uuid.Nil {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if !finite(sc.BaseSalaryAnnual) || sc.BaseSalaryAnnual < 0 {
		return fmt.Errorf("%w: base_salary_annual must be a non-negative number", ErrInvalidInput)
	}
	if sc.Rules == nil {
		sc.Rules = []models.CommissionRule{}
	}
	if sc.DepartmentNames == nil {
		sc.DepartmentNames = []string{}
	}

	for i, r := range sc.Rules {
		if r.SourceMetric == "" {
			return fmt.Errorf("%w: rule %d: source_metric is required", ErrInvalidInput, i)
		}
		if _, err := metrickey.Decode(r.SourceMetric); err != nil {
			return fmt.Errorf("%w: rule %d: %v", ErrInvalidInput, i, err)
		}
		if !finite(r.Rate) {
			return fmt.Errorf("%w: rule %d: rate must be a number", ErrInvalidInput, i)
		}
		if r.MinThreshold != nil && r.MaxThreshold != nil && *r.MinThreshold > *r.MaxThreshold {
			return fmt.Errorf("%w: rule %d: min_threshold exceeds max_threshold", ErrInvalidInput, i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
