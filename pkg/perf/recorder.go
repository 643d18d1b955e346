// Package perf records per-query performance samples for the order-history
// core: latency, row count, and whether the lookup was served from cache.
// Aggregated summaries feed the prefetch advisor and the Prometheus surface.
package perf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderhistory_query_duration_seconds",
		Help:    "Order-history query duration in seconds by query label",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
	}, []string{"label"})

	queryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderhistory_query_lookups_total",
		Help: "Total order-history lookups by query label and cache result",
	}, []string{"label", "result"})
)

// Record is one performance sample. Records are append-only; retention is
// bounded and the oldest samples are dropped beyond the configured count.
type Record struct {
	Label    string
	Latency  time.Duration
	RowCount int
	CacheHit bool
	At       time.Time
}

// Summary aggregates all retained samples for one query label.
type Summary struct {
	Count   int
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	HitRate float64

	// RemoteAvg is the average latency over cache-miss samples only, i.e.
	// the cost a pre-warm of this query would save.
	RemoteAvg time.Duration
}

// DefaultMaxRecords bounds retention when no limit is configured.
const DefaultMaxRecords = 1024

// Recorder collects samples. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	max     int
	now     func() time.Time
}

// NewRecorder creates a recorder retaining at most max samples.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = DefaultMaxRecords
	}
	return &Recorder{max: max, now: time.Now}
}

// Observe records one sample and mirrors it into the Prometheus metrics.
func (r *Recorder) Observe(label string, latency time.Duration, rows int, cacheHit bool) {
	queryDuration.WithLabelValues(label).Observe(latency.Seconds())
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	queryLookups.WithLabelValues(label, result).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{
		Label:    label,
		Latency:  latency,
		RowCount: rows,
		CacheHit: cacheHit,
		At:       r.now(),
	})
	if len(r.records) > r.max {
		r.records = r.records[len(r.records)-r.max:]
	}
}

// Summaries aggregates the retained samples per label.
func (r *Recorder) Summaries() map[string]Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	type acc struct {
		count, hits, misses int
		min, max, sum       time.Duration
		missSum             time.Duration
	}
	accs := make(map[string]*acc)
	for _, rec := range r.records {
		a, ok := accs[rec.Label]
		if !ok {
			a = &acc{min: rec.Latency, max: rec.Latency}
			accs[rec.Label] = a
		}
		a.count++
		a.sum += rec.Latency
		if rec.Latency < a.min {
			a.min = rec.Latency
		}
		if rec.Latency > a.max {
			a.max = rec.Latency
		}
		if rec.CacheHit {
			a.hits++
		} else {
			a.misses++
			a.missSum += rec.Latency
		}
	}

	out := make(map[string]Summary, len(accs))
	for label, a := range accs {
		s := Summary{
			Count:   a.count,
			Min:     a.min,
			Max:     a.max,
			Avg:     a.sum / time.Duration(a.count),
			HitRate: float64(a.hits) / float64(a.count),
		}
		if a.misses > 0 {
			s.RemoteAvg = a.missSum / time.Duration(a.misses)
		}
		out[label] = s
	}
	return out
}

// Len returns the number of retained samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset discards all retained samples. Prometheus counters are unaffected;
// only the in-memory window rotates.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
