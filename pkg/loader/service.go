package loader

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/courierops/orderhistory/pkg/advisor"
	"github.com/courierops/orderhistory/pkg/cache"
	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/orders"
	"github.com/courierops/orderhistory/pkg/perf"
)

// Service is the consumer-facing façade over the history core. It keeps one
// controller per (driver, filter) session and exposes the cache and advisor
// surfaces. Construct it once at the composition root and inject it; there
// are no ambient singletons.
type Service struct {
	cfg     Config
	advisor *advisor.Advisor

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewService creates the façade.
func NewService(cfg Config, adv *advisor.Advisor) *Service {
	if cfg.Recorder == nil {
		cfg.Recorder = perf.NewRecorder(0)
	}
	return &Service{
		cfg:      cfg,
		advisor:  adv,
		sessions: make(map[string]*Controller),
	}
}

// Session returns the controller owning the (driver, filter) pair, creating
// it on first use.
func (s *Service) Session(driverID string, flt filter.Filter) *Controller {
	key := driverID + "|" + flt.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions[key]; ok {
		return c
	}
	c := NewController(driverID, flt, s.cfg)
	s.sessions[key] = c
	return c
}

// GetPage is the synchronous-looking page-1 façade: cache-first, remote on
// miss. When another load already owns the session, the current snapshot is
// returned instead of a second fetch.
func (s *Service) GetPage(ctx context.Context, driverID string, flt filter.Filter) (*PageResult, error) {
	c := s.Session(driverID, flt)
	page, err := c.InitialLoad(ctx)
	if errors.Is(err, ErrLoadInFlight) {
		st := c.Snapshot()
		return &PageResult{
			Items:       st.Items,
			HasMore:     st.HasMore,
			TotalLoaded: st.TotalLoaded,
			FromCache:   true,
		}, nil
	}
	return page, err
}

// Count returns the number of records in the filter window, cache-through
// with the same TTL policy as pages.
func (s *Service) Count(ctx context.Context, driverID string, flt filter.Filter) (int64, error) {
	key := cache.Key{DriverID: driverID, Kind: cache.KindCount, FilterKey: flt.Key()}
	ttl := s.cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.cfg.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	if entry, err := s.cfg.Cache.Get(ctx, key); err == nil {
		var count int64
		if json.Unmarshal(entry.Data, &count) == nil {
			s.cfg.Recorder.Observe("count", now().Sub(start), 1, true)
			return count, nil
		}
	}

	count, err := s.cfg.Source.CountRecords(ctx, driverID, flt)
	if err != nil {
		if errors.Is(err, orders.ErrDriverNotFound) {
			return 0, nil
		}
		return 0, newLoadError("count", err)
	}
	s.cfg.Recorder.Observe("count", now().Sub(start), 1, false)
	if data, err := json.Marshal(count); err == nil {
		_ = s.cfg.Cache.Put(ctx, key, data, ttl)
	}
	return count, nil
}

// AggregateStats returns summary statistics for the filter window,
// cache-through with the same TTL policy as pages.
func (s *Service) AggregateStats(ctx context.Context, driverID string, flt filter.Filter) (orders.AggregateStats, error) {
	key := cache.Key{DriverID: driverID, Kind: cache.KindStats, FilterKey: flt.Key()}
	ttl := s.cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.cfg.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	if entry, err := s.cfg.Cache.Get(ctx, key); err == nil {
		var stats orders.AggregateStats
		if json.Unmarshal(entry.Data, &stats) == nil {
			s.cfg.Recorder.Observe("stats", now().Sub(start), 1, true)
			return stats, nil
		}
	}

	stats, err := s.cfg.Source.QueryAggregateStats(ctx, driverID, flt)
	if err != nil {
		if errors.Is(err, orders.ErrDriverNotFound) {
			return orders.AggregateStats{}, nil
		}
		return orders.AggregateStats{}, newLoadError("aggregate stats", err)
	}
	s.cfg.Recorder.Observe("stats", now().Sub(start), 1, false)
	if data, err := json.Marshal(stats); err == nil {
		_ = s.cfg.Cache.Put(ctx, key, data, ttl)
	}
	return stats, nil
}

// PerfSummaries exposes the aggregated query-performance summaries.
func (s *Service) PerfSummaries() map[string]perf.Summary {
	return s.cfg.Recorder.Summaries()
}

// CacheStats exposes the shared cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cfg.Cache.Stats()
}

// Recommendations returns the filter types worth pre-warming given the
// currently viewed one. Empty when no advisor is wired.
func (s *Service) Recommendations(current filter.Type) []filter.Type {
	if s.advisor == nil {
		return nil
	}
	return s.advisor.Recommend(current)
}
