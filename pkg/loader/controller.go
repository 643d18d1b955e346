// Package loader implements the lazy loading controller: the single owner of
// one (driver, filter) history session. It orchestrates initial load, append
// ("load more"), forced refresh, and speculative prefetch against the result
// cache and the remote order source, and guarantees that overlapping
// operations never corrupt the visible result list.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/courierops/orderhistory/pkg/cache"
	"github.com/courierops/orderhistory/pkg/cursor"
	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/logging"
	"github.com/courierops/orderhistory/pkg/orders"
	"github.com/courierops/orderhistory/pkg/perf"
)

// Phase is the controller's lifecycle state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseErrored Phase = "errored"
)

// PrefetchThreshold is how close to the end of the loaded list the consumer
// must scroll before ShouldLoadMore fires. Independent of page size.
const PrefetchThreshold = 5

// DefaultTTL is the cache lifetime for page results, counts, and summaries.
const DefaultTTL = 60 * time.Second

// PageResult is one page of history as returned to consumers and as cached.
type PageResult struct {
	Items       []orders.Order `json:"items"`
	HasMore     bool           `json:"has_more"`
	NextCursor  string         `json:"next_cursor,omitempty"`
	PrevCursor  string         `json:"prev_cursor,omitempty"`
	TotalLoaded int            `json:"total_loaded"`

	// FromCache marks whether this result was served without a remote call.
	// Never true for a refresh result.
	FromCache bool `json:"-"`
}

// State is a read-only snapshot of the session for consumers.
type State struct {
	Items       []orders.Order
	HasMore     bool
	IsLoading   bool
	CurrentPage int
	TotalLoaded int
	Phase       Phase
	Err         error
}

// Config wires a controller's dependencies.
type Config struct {
	Source   orders.RemoteSource
	Cache    cache.Store
	Recorder *perf.Recorder
	Logger   *zerolog.Logger

	// TTL for cache entries; DefaultTTL when zero.
	TTL time.Duration

	// Now is the clock, injectable for tests; time.Now when nil.
	Now func() time.Time
}

// Controller owns one (driver, filter) session. All state transitions are
// serialized through its mutex; the in-flight flag is checked and set under
// the same lock, so there is never a check-then-act window between two
// operations. Late responses from superseded operations are detected via a
// generation counter bumped on every refresh and discarded.
type Controller struct {
	driverID string
	flt      filter.Filter
	label    string

	source   orders.RemoteSource
	cache    cache.Store
	recorder *perf.Recorder
	logger   zerolog.Logger
	ttl      time.Duration
	now      func() time.Time

	mu          sync.Mutex
	phase       Phase
	items       []orders.Order
	hasMore     bool
	isLoading   bool
	currentPage int
	err         error
	generation  uint64

	// Cursor of the last loaded item; zero timestamp means "from the start".
	cursorTS time.Time
	cursorID string
}

// NewController creates the session owner for one (driver, filter) pair.
func NewController(driverID string, flt filter.Filter, cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := logging.NewLogger("loader")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = perf.NewRecorder(0)
	}
	return &Controller{
		driverID: driverID,
		flt:      flt,
		label:    string(filter.TypeOf(flt, now())),
		source:   cfg.Source,
		cache:    cfg.Cache,
		recorder: recorder,
		logger:   logger.With().Str("driver_id", driverID).Logger(),
		ttl:      ttl,
		now:      now,
		phase:    PhaseIdle,
	}
}

// Snapshot returns the current session state. Items are copied; callers can
// never mutate the controller's list.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]orders.Order, len(c.items))
	copy(items, c.items)
	return State{
		Items:       items,
		HasMore:     c.hasMore,
		IsLoading:   c.isLoading,
		CurrentPage: c.currentPage,
		TotalLoaded: len(c.items),
		Phase:       c.phase,
		Err:         c.err,
	}
}

// InitialLoad serves page 1: from cache when a fresh entry exists, from the
// remote source otherwise. A remote failure on the cursor path triggers
// exactly one fallback attempt on the offset path before surfacing an
// Errored state.
func (c *Controller) InitialLoad(ctx context.Context) (*PageResult, error) {
	gen, err := c.begin(false)
	if err != nil {
		return nil, err
	}

	key := c.pageKey(1)
	start := c.now()

	if entry, cacheErr := c.cache.Get(ctx, key); cacheErr == nil {
		if page, ok := c.decodePage(entry.Data); ok {
			page.FromCache = true
			c.recorder.Observe(c.label, c.now().Sub(start), len(page.Items), true)
			c.applyReplace(gen, page)
			return page, nil
		}
		// Undecodable entry (corrupt payload or malformed cursor): restart
		// pagination from the beginning via the remote path.
		c.logger.Warn().Str("key", key.String()).Msg("Discarding undecodable cache entry")
	}

	items, fetchErr := c.source.QueryCursorPage(ctx, c.driverID, c.flt, time.Time{}, "", orders.DirectionNext)
	if fetchErr != nil && !errors.Is(fetchErr, orders.ErrDriverNotFound) {
		// Degraded path: one offset-mode attempt, never more.
		c.logger.Warn().Err(fetchErr).Msg("Cursor path failed, falling back to offset mode")
		items, fetchErr = c.source.QueryPage(ctx, c.driverID, c.flt.WithOffset(0))
	}
	latency := c.now().Sub(start)

	if fetchErr != nil {
		if errors.Is(fetchErr, orders.ErrDriverNotFound) {
			// Unknown driver is an empty, terminal result, not a failure.
			page := c.buildPage(nil, 0)
			c.recorder.Observe(c.label, latency, 0, false)
			c.applyReplace(gen, page)
			return page, nil
		}
		loadErr := newLoadError("initial load", fetchErr)
		c.applyError(gen, loadErr)
		return nil, loadErr
	}

	page := c.buildPage(items, 0)
	c.putPage(ctx, key, page)
	c.recorder.Observe(c.label, latency, len(items), false)
	c.applyReplace(gen, page)
	return page, nil
}

// LoadMore appends the next page. It is a no-op when there is nothing more
// to load or another load is already in flight; the guard is checked and set
// atomically, so two concurrent calls can never both fetch.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.isLoading || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.isLoading = true
	c.phase = PhaseLoading
	gen := c.generation
	curTS, curID := c.cursorTS, c.cursorID
	nextPage := c.currentPage + 1
	loaded := len(c.items)
	c.mu.Unlock()

	start := c.now()
	items, fetchErr := c.source.QueryCursorPage(ctx, c.driverID, c.flt, curTS, curID, orders.DirectionNext)
	latency := c.now().Sub(start)

	if fetchErr != nil {
		if errors.Is(fetchErr, orders.ErrDriverNotFound) {
			c.applyAppend(gen, nil, nextPage)
			return nil
		}
		loadErr := newLoadError("load more", fetchErr)
		c.applyError(gen, loadErr)
		return loadErr
	}

	page := c.buildPage(items, loaded)
	c.putPage(ctx, c.pageKey(nextPage), page)
	c.recorder.Observe(c.label, latency, len(items), false)
	c.applyAppend(gen, items, nextPage)
	return nil
}

// Refresh invalidates the driver's cache entries, resets pagination to page
// 1, and re-fetches. It supersedes any in-flight load: the generation bump
// guarantees a late-arriving older response is discarded even if it lands
// after the refresh result.
func (c *Controller) Refresh(ctx context.Context) (*PageResult, error) {
	gen, _ := c.begin(true)

	if err := c.cache.InvalidateDriver(ctx, c.driverID); err != nil {
		c.logger.Warn().Err(err).Msg("Cache invalidation incomplete during refresh")
	}

	start := c.now()
	items, fetchErr := c.source.QueryCursorPage(ctx, c.driverID, c.flt, time.Time{}, "", orders.DirectionNext)
	latency := c.now().Sub(start)

	if fetchErr != nil {
		if errors.Is(fetchErr, orders.ErrDriverNotFound) {
			page := c.buildPage(nil, 0)
			c.recorder.Observe(c.label, latency, 0, false)
			c.applyReplace(gen, page)
			return page, nil
		}
		loadErr := newLoadError("refresh", fetchErr)
		c.applyError(gen, loadErr)
		return nil, loadErr
	}

	page := c.buildPage(items, 0)
	c.putPage(ctx, c.pageKey(1), page)
	c.recorder.Observe(c.label, latency, len(items), false)
	c.applyReplace(gen, page)
	// A refresh result is never reported as cached, regardless of any stale
	// residual entry race.
	page.FromCache = false
	return page, nil
}

// PrefetchNext fetches and caches the page after the current one without
// touching the visible session state. Best-effort: it runs detached and any
// failure is logged, never surfaced or retried.
func (c *Controller) PrefetchNext() {
	c.mu.Lock()
	if !c.hasMore {
		c.mu.Unlock()
		return
	}
	curTS, curID := c.cursorTS, c.cursorID
	nextPage := c.currentPage + 1
	loaded := len(c.items)
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		start := c.now()
		items, err := c.source.QueryCursorPage(ctx, c.driverID, c.flt, curTS, curID, orders.DirectionNext)
		if err != nil {
			c.logger.Warn().Err(err).Int("page", nextPage).Msg("Prefetch failed")
			return
		}
		page := c.buildPage(items, loaded)
		c.putPage(ctx, c.pageKey(nextPage), page)
		// Prefetch samples carry their own label so speculative traffic
		// never skews the advisor's usage ranking.
		c.recorder.Observe(c.label+":prefetch", c.now().Sub(start), len(items), false)
		c.logger.Debug().Int("page", nextPage).Int("rows", len(items)).Msg("Prefetched next page")
	}()
}

// ShouldLoadMore reports whether the consumer, currently at currentIndex of
// totalItems, is close enough to the end to trigger a load.
func (c *Controller) ShouldLoadMore(currentIndex, totalItems int) bool {
	c.mu.Lock()
	hasMore, isLoading := c.hasMore, c.isLoading
	c.mu.Unlock()
	return shouldLoadMore(currentIndex, totalItems, hasMore, isLoading)
}

// shouldLoadMore is the pure threshold check.
func shouldLoadMore(currentIndex, totalItems int, hasMore, isLoading bool) bool {
	return hasMore && !isLoading && currentIndex >= totalItems-PrefetchThreshold
}

// begin transitions into Loading. For a refresh, the generation is bumped
// and any in-flight operation is taken over; otherwise an in-flight
// operation rejects the call.
func (c *Controller) begin(refresh bool) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if refresh {
		c.generation++
	} else if c.isLoading {
		return 0, ErrLoadInFlight
	}
	c.isLoading = true
	c.phase = PhaseLoading
	return c.generation, nil
}

// applyReplace installs a page-1 result, unless the operation was superseded.
func (c *Controller) applyReplace(gen uint64, page *PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug().Uint64("stale_gen", gen).Msg("Discarding superseded page result")
		return
	}
	c.items = append([]orders.Order(nil), page.Items...)
	c.hasMore = page.HasMore
	c.currentPage = 1
	c.phase = PhaseLoaded
	c.err = nil
	c.isLoading = false
	c.setCursorLocked(page.Items)
}

// applyAppend merges a load-more result in fetch order. Previously loaded
// items are never reordered or dropped.
func (c *Controller) applyAppend(gen uint64, items []orders.Order, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Debug().Uint64("stale_gen", gen).Msg("Discarding superseded load-more result")
		return
	}
	c.items = append(c.items, items...)
	c.hasMore = len(items) >= c.flt.Limit
	c.currentPage = page
	c.phase = PhaseLoaded
	c.err = nil
	c.isLoading = false
	c.setCursorLocked(items)
}

// applyError marks the session Errored while preserving loaded items.
func (c *Controller) applyError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.phase = PhaseErrored
	c.err = err
	c.isLoading = false
}

func (c *Controller) setCursorLocked(items []orders.Order) {
	if len(items) == 0 {
		return
	}
	last := items[len(items)-1]
	c.cursorTS = last.EffectiveTime()
	c.cursorID = last.ID
}

func (c *Controller) pageKey(page int) cache.Key {
	return cache.Key{
		DriverID:  c.driverID,
		Kind:      cache.KindPage,
		FilterKey: c.flt.Key(),
		Page:      page,
	}
}

// buildPage assembles a PageResult from one fetched batch. HasMore holds
// exactly when the batch filled the requested limit.
func (c *Controller) buildPage(items []orders.Order, previouslyLoaded int) *PageResult {
	page := &PageResult{
		Items:       items,
		HasMore:     len(items) >= c.flt.Limit,
		TotalLoaded: previouslyLoaded + len(items),
	}
	if len(items) > 0 {
		page.NextCursor = cursor.Encode(items[len(items)-1])
		page.PrevCursor = cursor.Encode(items[0])
	}
	return page
}

// decodePage unmarshals a cached page and validates its cursors. An entry
// whose cursor no longer decodes is treated as unusable so pagination
// restarts cleanly from page 1.
func (c *Controller) decodePage(data []byte) (*PageResult, bool) {
	var page PageResult
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false
	}
	if page.NextCursor != "" {
		if _, err := cursor.Decode(page.NextCursor); err != nil {
			return nil, false
		}
	}
	return &page, true
}

func (c *Controller) putPage(ctx context.Context, key cache.Key, page *PageResult) {
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to marshal page for caching")
		return
	}
	if err := c.cache.Put(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
	}
}
