package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/ingest"
	"github.com/dealerops/incentive-engine/internal/models"
)

// ImportEntries upserts parsed CSV rows into a department and drops its
// cached rows. It returns the number of rows written.
func (s *Service) ImportEntries(ctx context.Context, departmentID uuid.UUID, rows []ingest.Row) (int, error) {
	dept, err := s.department(ctx, departmentID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	// A later line for the same metric and month replaces an earlier one.
	type cellKey struct{ metric, month string }
	latest := make(map[cellKey]int, len(rows))
	entries := make([]models.FinancialEntry, 0, len(rows))
	for _, r := range rows {
		k := cellKey{r.MetricKey, r.Month}
		e := models.FinancialEntry{
			DepartmentID: dept.ID,
			StoreID:      dept.StoreID,
			MetricKey:    r.MetricKey,
			Month:        r.Month,
			Value:        r.Value,
		}
		if i, ok := latest[k]; ok {
			entries[i] = e
			continue
		}
		latest[k] = len(entries)
		entries = append(entries, e)
	}

	if err := s.entries.UpsertFinancialEntries(ctx, entries); err != nil {
		return 0, fmt.Errorf("upsert financial entries: %w", err)
	}
	s.cache.Invalidate(dept.ID)

	s.logger.Info("financial entries imported",
		slog.String("department_id", dept.ID.String()),
		slog.Int("rows", len(entries)),
	)
	return len(entries), nil
}
