package aggregate

import (
	"github.com/google/uuid"

	"github.com/dealerops/incentive-engine/internal/metrickey"
	"github.com/dealerops/incentive-engine/internal/models"
)

// Series maps a "YYYY-MM" month to an aggregated value.
type Series map[string]float64

// Get returns the month's value, treating a missing month as zero.
func (s Series) Get(month string) float64 {
	return s[month]
}

// Total sums the series over the given months.
func (s Series) Total(months []string) float64 {
	var total float64
	for _, m := range months {
		total += s[m]
	}
	return total
}

// Add returns the pointwise sum of s and other over the union of their months.
func (s Series) Add(other Series) Series {
	out := make(Series, len(s))
	for m, v := range s {
		out[m] = v
	}
	for m, v := range other {
		out[m] += v
	}
	return out
}

// StoreSet is the set of stores an aggregate rolls up. The empty set is valid.
type StoreSet map[uuid.UUID]struct{}

// NewStoreSet builds a set from ids.
func NewStoreSet(ids ...uuid.UUID) StoreSet {
	set := make(StoreSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set.
func (s StoreSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Rollup is an aggregate plus enough bookkeeping to tell zero from no data.
type Rollup struct {
	MetricKey string `json:"metric_key"`
	Values    Series `json:"values"`
	// Reporting counts, per month, the rows with a non-null value that contributed.
	Reporting map[string]int `json:"reporting"`
	// Skipped counts rows dropped because their stored key did not decode.
	Skipped int `json:"skipped"`
}

// HasData reports whether any row contributed to month.
func (r Rollup) HasData(month string) bool {
	return r.Reporting[month] > 0
}

// Aggregate sums metricKey over every entry owned by a store in stores, per
// month. Every requested month is present in the result; months nobody
// reported are zero.
func Aggregate(entries []models.FinancialEntry, stores StoreSet, metricKey string, months []string) Series {
	return Summarize(entries, stores, metricKey, months).Values
}

// Summarize is Aggregate with per-month reporting counts.
func Summarize(entries []models.FinancialEntry, stores StoreSet, metricKey string, months []string) Rollup {
	return AggregateMany(entries, stores, []string{metricKey}, months)[metricKey]
}

// AggregateMany computes several metric keys in a single pass. Keys are
// matched by identity, so a legacy and a current encoding of the same
// sub-metric land in the same series. The result is keyed by the keys as
// the caller passed them.
func AggregateMany(entries []models.FinancialEntry, stores StoreSet, metricKeys []string, months []string) map[string]Rollup {
	out := make(map[string]Rollup, len(metricKeys))
	byIdentity := make(map[string][]string, len(metricKeys))

	for _, key := range metricKeys {
		r := Rollup{
			MetricKey: key,
			Values:    make(Series, len(months)),
			Reporting: make(map[string]int, len(months)),
		}
		for _, m := range months {
			r.Values[m] = 0
		}
		out[key] = r

		id, err := metrickey.Normalize(key)
		if err != nil {
			// A key nothing can match aggregates to zero.
			continue
		}
		byIdentity[id] = append(byIdentity[id], key)
	}

	inRange := make(map[string]bool, len(months))
	for _, m := range months {
		inRange[m] = true
	}

	skipped := 0
	for _, e := range entries {
		if !stores.Contains(e.StoreID) || !inRange[e.Month] {
			continue
		}
		id, err := metrickey.Normalize(e.MetricKey)
		if err != nil {
			skipped++
			continue
		}
		targets, ok := byIdentity[id]
		if !ok || e.Value == nil {
			continue
		}
		for _, key := range targets {
			r := out[key]
			r.Values[e.Month] += *e.Value
			r.Reporting[e.Month]++
		}
	}

	for key, r := range out {
		r.Skipped = skipped
		out[key] = r
	}
	return out
}
