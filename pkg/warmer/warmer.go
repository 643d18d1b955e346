// Package warmer pre-warms the result cache for the history views a driver
// is likely to open next. It turns the advisor's ranking into concrete
// first-page loads, executed in parallel with a bounded worker pool.
package warmer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/loader"
	"github.com/courierops/orderhistory/pkg/logging"
)

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel warm-up loads.
	MaxConcurrency int

	// Timeout per warm-up load.
	Timeout time.Duration

	// Limit is the page size for warmed views.
	Limit int

	Logger *zerolog.Logger
}

// DefaultConfig returns safe warmer defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 3,
		Timeout:        15 * time.Second,
		Limit:          filter.DefaultLimit,
	}
}

// Result records the outcome of warming one view.
type Result struct {
	Type filter.Type
	Err  error
}

// Warmer pre-warms recommended views through the history service. Warm-up
// loads go through the normal load path, so their pages land in the cache
// under the exact keys a real view would use.
type Warmer struct {
	svc    *loader.Service
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a warmer on top of the history service.
func New(svc *loader.Service, cfg Config) *Warmer {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = filter.DefaultLimit
	}
	logger := logging.NewLogger("warmer")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Warmer{svc: svc, cfg: cfg, logger: logger, now: time.Now}
}

// WarmDriver loads the first page of every recommended view for the driver,
// given the view currently open. Failures are per-view; one failed warm-up
// never aborts the rest.
func (w *Warmer) WarmDriver(ctx context.Context, driverID string, current filter.Type) []Result {
	recommended := w.svc.Recommendations(current)
	if len(recommended) == 0 {
		return nil
	}

	start := w.now()
	w.logger.Info().
		Str("driver_id", driverID).
		Int("views", len(recommended)).
		Msg("Starting cache warm-up")

	queue := make(chan filter.Type, len(recommended))
	for _, t := range recommended {
		queue <- t
	}
	close(queue)

	results := make(chan Result, len(recommended))
	workers := w.cfg.MaxConcurrency
	if workers > len(recommended) {
		workers = len(recommended)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go w.worker(ctx, driverID, queue, results, &wg)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Result, 0, len(recommended))
	warmed := 0
	for r := range results {
		if r.Err != nil {
			w.logger.Warn().Err(r.Err).
				Str("driver_id", driverID).
				Str("view", string(r.Type)).
				Msg("Warm-up load failed")
		} else {
			warmed++
		}
		out = append(out, r)
	}

	w.logger.Info().
		Str("driver_id", driverID).
		Int("warmed", warmed).
		Int("views", len(recommended)).
		Dur("duration", w.now().Sub(start)).
		Msg("Warm-up complete")
	return out
}

func (w *Warmer) worker(ctx context.Context, driverID string, queue <-chan filter.Type, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for viewType := range queue {
		select {
		case <-ctx.Done():
			results <- Result{Type: viewType, Err: ctx.Err()}
			continue
		default:
		}

		loadCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
		_, err := w.svc.GetPage(loadCtx, driverID, w.filterFor(viewType))
		cancel()
		results <- Result{Type: viewType, Err: err}
	}
}

// filterFor maps a view type to the filter the real view would construct, so
// the warmed entry and the later live lookup share a cache key.
func (w *Warmer) filterFor(t filter.Type) filter.Filter {
	now := w.now()
	switch t {
	case filter.TypeToday:
		return filter.Today(now, w.cfg.Limit)
	case filter.TypeThisWeek:
		return filter.ThisWeek(now, w.cfg.Limit)
	case filter.TypeThisMonth:
		return filter.ThisMonth(now, w.cfg.Limit)
	default:
		return filter.Filter{Limit: w.cfg.Limit, SortBy: "date"}
	}
}
