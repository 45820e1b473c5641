package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dealerops/incentive-engine/internal/models"
	"github.com/dealerops/incentive-engine/internal/period"
	"github.com/dealerops/incentive-engine/internal/telemetry"
	"github.com/dealerops/incentive-engine/internal/timeseries"
)

// loadTimeout bounds a shared load, which outlives its callers' contexts.
const loadTimeout = 30 * time.Second

// Bundle is every row the engine needs for one department and year. It is
// shared between callers and must not be modified.
type Bundle struct {
	DepartmentID uuid.UUID
	Year         int
	Entries      []models.FinancialEntry
	Targets      []models.FinancialTarget
	Forecasts    []models.ForecastEntry
	LoadedAt     time.Time
}

type key struct {
	department uuid.UUID
	year       int
}

// Cache holds department bundles loaded from a Reader. Entries are only
// dropped by Invalidate/InvalidateAll or by age; each reload reads the full
// row set again, so repeated or reordered invalidations are harmless.
type Cache struct {
	reader      timeseries.Reader
	maxAge      time.Duration
	concurrency int
	metrics     *telemetry.Collectors
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.RWMutex
	items     map[key]*Bundle
	deptGen   map[uuid.UUID]uint64
	globalGen uint64

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxAge bounds how long a bundle is served without a reload. Zero
// disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

// WithConcurrency limits parallel department loads in Bundles.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMetrics records hits, misses and invalidations.
func WithMetrics(m *telemetry.Collectors) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache over reader.
func New(reader timeseries.Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:      reader,
		concurrency: 4,
		now:         time.Now,
		logger:      slog.Default().With(slog.String("service", "metrics-cache")),
		items:       make(map[key]*Bundle),
		deptGen:     make(map[uuid.UUID]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bundle returns the department's rows for year, loading them on a miss.
// Concurrent misses for the same department and year share one load.
func (c *Cache) Bundle(ctx context.Context, departmentID uuid.UUID, year int) (*Bundle, error) {
	k := key{departmentID, year}

	c.mu.RLock()
	b, ok := c.items[k]
	gen := c.generationLocked(departmentID)
	c.mu.RUnlock()

	if ok && !c.expired(b) {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return b, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	// The generation is part of the flight key so a caller arriving after an
	// invalidation never joins a load that started before it.
	flight := fmt.Sprintf("%s:%d:%d", departmentID, year, gen)
	ch := c.group.DoChan(flight, func() (any, error) {
		// The load serves every caller that joins the flight, so it is not
		// tied to the first caller's cancellation.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		loaded, err := c.load(lctx, departmentID, year)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generationLocked(departmentID) == gen {
			c.items[k] = loaded
		} else if c.metrics != nil {
			c.metrics.CacheDiscards.Inc()
		}
		c.mu.Unlock()

		return loaded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Bundle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Bundles loads several departments in parallel.
func (c *Cache) Bundles(ctx context.Context, departmentIDs []uuid.UUID, year int) (map[uuid.UUID]*Bundle, error) {
	out := make(map[uuid.UUID]*Bundle, len(departmentIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range departmentIDs {
		g.Go(func() error {
			b, err := c.Bundle(gctx, id, year)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = b
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops every cached year of a department.
func (c *Cache) Invalidate(departmentID uuid.UUID) {
	c.mu.Lock()
	c.deptGen[departmentID]++
	for k := range c.items {
		if k.department == departmentID {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Invalidations.WithLabelValues("department").Inc()
	}
	c.logger.Debug("department invalidated", slog.String("department_id", departmentID.String()))
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.globalGen++
	c.items = make(map[key]*Bundle)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Invalidations.WithLabelValues("all").Inc()
	}
	c.logger.Debug("cache invalidated")
}

// Len reports the number of cached bundles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) generationLocked(departmentID uuid.UUID) uint64 {
	return c.globalGen<<32 | c.deptGen[departmentID]
}

func (c *Cache) expired(b *Bundle) bool {
	return c.maxAge > 0 && c.now().Sub(b.LoadedAt) > c.maxAge
}

func (c *Cache) load(ctx context.Context, departmentID uuid.UUID, year int) (*Bundle, error) {
	entries, err := c.reader.ListFinancialEntries(ctx, departmentID, period.YearMonths(year))
	if err != nil {
		return nil, fmt.Errorf("list financial entries: %w", err)
	}

	var targets []models.FinancialTarget
	for q := 1; q <= 4; q++ {
		qt, err := c.reader.ListFinancialTargets(ctx, departmentID, q, year)
		if err != nil {
			return nil, fmt.Errorf("list financial targets q%d: %w", q, err)
		}
		targets = append(targets, qt...)
	}

	forecasts, err := c.reader.ListForecastEntries(ctx, departmentID, year)
	if err != nil {
		return nil, fmt.Errorf("list forecast entries: %w", err)
	}

	c.logger.Debug("department bundle loaded",
		slog.String("department_id", departmentID.String()),
		slog.Int("year", year),
		slog.Int("entries", len(entries)),
		slog.Int("targets", len(targets)),
		slog.Int("forecasts", len(forecasts)),
	)

	return &Bundle{
		DepartmentID: departmentID,
		Year:         year,
		Entries:      entries,
		Targets:      targets,
		Forecasts:    forecasts,
		LoadedAt:     c.now(),
	}, nil
}
