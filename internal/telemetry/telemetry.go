package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the engine's Prometheus instruments.
type Collectors struct {
	registry *prometheus.Registry

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheDiscards  prometheus.Counter
	Invalidations  *prometheus.CounterVec
	SkippedRows    prometheus.Counter
	ReportDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	c := &Collectors{
		registry: reg,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incentive",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Department bundle lookups served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incentive",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Department bundle lookups that loaded from the reader.",
		}),
		CacheDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incentive",
			Subsystem: "cache",
			Name:      "discarded_loads_total",
			Help:      "Loads not stored because an invalidation raced them.",
		}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incentive",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache invalidations by scope.",
		}, []string{"scope"}),
		SkippedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "incentive",
			Subsystem: "aggregate",
			Name:      "skipped_rows_total",
			Help:      "Financial entries skipped for a malformed metric key.",
		}),
		ReportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "incentive",
			Subsystem: "report",
			Name:      "duration_seconds",
			Help:      "Time to build a report, including reader round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
	}

	reg.MustRegister(c.CacheHits, c.CacheMisses, c.CacheDiscards, c.Invalidations, c.SkippedRows, c.ReportDuration)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Gatherer exposes the registry for tests.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}
