package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/courierops/orderhistory/internal/testutil"
	"github.com/courierops/orderhistory/pkg/cache"
	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/loader"
	"github.com/courierops/orderhistory/pkg/perf"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newStore(t *testing.T, redisClient *redis.Client, memorySize int) *cache.Tiered {
	t.Helper()
	store, err := cache.NewTiered(cache.Config{
		MemorySize: memorySize,
		Redis:      redisClient,
	})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return store
}

const testDriver = "driver-integration"

func seededSource(n int) *testutil.FakeSource {
	src := testutil.NewFakeSource()
	src.SeedDriver(testDriver, testutil.MakeOrders(testDriver, n, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)))
	return src
}

// TestFullLoadFlow tests the complete flow: cache miss → remote fetch →
// cache store → cache hit on the next load.
func TestFullLoadFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(25)
	store := newStore(t, redisClient, 64)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	cfg := loader.Config{Source: src, Cache: store, Recorder: perf.NewRecorder(100), TTL: time.Minute}

	ctx := context.Background()

	t.Log("Load 1: full flow - cache miss")
	c1 := loader.NewController(testDriver, flt, cfg)
	page1, err := c1.InitialLoad(ctx)
	if err != nil {
		t.Fatalf("Load 1 failed: %v", err)
	}
	if page1.FromCache {
		t.Error("Load 1 should not be served from cache")
	}
	if len(page1.Items) != 20 {
		t.Errorf("Load 1 items = %d, want 20", len(page1.Items))
	}
	if src.CursorCalls() != 1 {
		t.Errorf("After load 1: remote calls = %d, want 1", src.CursorCalls())
	}

	t.Log("Load 2: fresh session, same store - cache hit")
	c2 := loader.NewController(testDriver, flt, cfg)
	page2, err := c2.InitialLoad(ctx)
	if err != nil {
		t.Fatalf("Load 2 failed: %v", err)
	}
	if !page2.FromCache {
		t.Error("Load 2 should be served from cache")
	}
	if src.CursorCalls() != 1 {
		t.Errorf("After load 2: remote calls = %d, want 1 (cached)", src.CursorCalls())
	}
}

// TestRedisTierSurvivesMemoryLoss tests that a page cached through one store
// is served from Redis by a brand-new store, i.e. across process restarts.
func TestRedisTierSurvivesMemoryLoss(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(25)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	ctx := context.Background()

	first := newStore(t, redisClient, 64)
	c1 := loader.NewController(testDriver, flt, loader.Config{
		Source: src, Cache: first, Recorder: perf.NewRecorder(100), TTL: time.Minute,
	})
	if _, err := c1.InitialLoad(ctx); err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}

	// Simulate a restart: new memory tier, same Redis.
	second := newStore(t, redisClient, 64)
	c2 := loader.NewController(testDriver, flt, loader.Config{
		Source: src, Cache: second, Recorder: perf.NewRecorder(100), TTL: time.Minute,
	})
	page, err := c2.InitialLoad(ctx)
	if err != nil {
		t.Fatalf("Load after restart failed: %v", err)
	}
	if !page.FromCache {
		t.Error("Load after restart should be served from the Redis tier")
	}
	if src.CursorCalls() != 1 {
		t.Errorf("Remote calls = %d, want 1", src.CursorCalls())
	}
}

// TestInvalidationClearsBothTiers tests that a driver-scoped invalidation
// removes entries from memory and Redis, forcing the next load remote.
func TestInvalidationClearsBothTiers(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(10)
	store := newStore(t, redisClient, 64)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	cfg := loader.Config{Source: src, Cache: store, Recorder: perf.NewRecorder(100), TTL: time.Minute}
	ctx := context.Background()

	c := loader.NewController(testDriver, flt, cfg)
	if _, err := c.InitialLoad(ctx); err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}

	if err := store.InvalidateDriver(ctx, testDriver); err != nil {
		t.Fatalf("Invalidation failed: %v", err)
	}

	// Redis must not hold the key anymore either.
	fresh := newStore(t, redisClient, 64)
	c2 := loader.NewController(testDriver, flt, loader.Config{
		Source: src, Cache: fresh, Recorder: perf.NewRecorder(100), TTL: time.Minute,
	})
	page, err := c2.InitialLoad(ctx)
	if err != nil {
		t.Fatalf("Load after invalidation failed: %v", err)
	}
	if page.FromCache {
		t.Error("Load after invalidation should go remote")
	}
	if src.CursorCalls() != 2 {
		t.Errorf("Remote calls = %d, want 2", src.CursorCalls())
	}
}

// TestRefreshBypassesSharedCache tests that a refresh re-fetches even when
// both tiers hold a fresh entry.
func TestRefreshBypassesSharedCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(10)
	store := newStore(t, redisClient, 64)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	cfg := loader.Config{Source: src, Cache: store, Recorder: perf.NewRecorder(100), TTL: time.Minute}
	ctx := context.Background()

	c := loader.NewController(testDriver, flt, cfg)
	if _, err := c.InitialLoad(ctx); err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}

	page, err := c.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if page.FromCache {
		t.Error("Refresh result must never be from cache")
	}
	if src.CursorCalls() != 2 {
		t.Errorf("Remote calls = %d, want 2 (refresh goes remote)", src.CursorCalls())
	}
}

// TestCacheExpiration tests that an entry past its TTL is not served from
// either tier.
func TestCacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(10)
	store := newStore(t, redisClient, 64)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	cfg := loader.Config{Source: src, Cache: store, Recorder: perf.NewRecorder(100), TTL: time.Second}
	ctx := context.Background()

	c := loader.NewController(testDriver, flt, cfg)
	if _, err := c.InitialLoad(ctx); err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}

	// Wait for the 1s TTL to lapse in both tiers.
	time.Sleep(1500 * time.Millisecond)

	c2 := loader.NewController(testDriver, flt, cfg)
	page, err := c2.InitialLoad(ctx)
	if err != nil {
		t.Fatalf("Load after expiry failed: %v", err)
	}
	if page.FromCache {
		t.Error("Expired entry must not be served")
	}
	if src.CursorCalls() != 2 {
		t.Errorf("Remote calls = %d, want 2 (cache expired)", src.CursorCalls())
	}
}

// TestLoadMorePagesCachedSeparately tests that page 1 and page 2 live under
// distinct keys and both end up in Redis.
func TestLoadMorePagesCachedSeparately(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	src := seededSource(25)
	store := newStore(t, redisClient, 64)
	flt := filter.Filter{Limit: 20, SortBy: "date"}
	cfg := loader.Config{Source: src, Cache: store, Recorder: perf.NewRecorder(100), TTL: time.Minute}
	ctx := context.Background()

	c := loader.NewController(testDriver, flt, cfg)
	if _, err := c.InitialLoad(ctx); err != nil {
		t.Fatalf("Initial load failed: %v", err)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("Load more failed: %v", err)
	}

	st := c.Snapshot()
	if st.TotalLoaded != 25 {
		t.Errorf("TotalLoaded = %d, want 25", st.TotalLoaded)
	}

	keys, err := redisClient.Keys(ctx, cache.DriverPrefix(testDriver)+"*").Result()
	if err != nil {
		t.Fatalf("Redis KEYS failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Redis keys = %d, want 2 (page 1 and page 2): %v", len(keys), keys)
	}
}
