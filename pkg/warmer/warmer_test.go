package warmer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierops/orderhistory/internal/testutil"
	"github.com/courierops/orderhistory/pkg/advisor"
	"github.com/courierops/orderhistory/pkg/cache"
	"github.com/courierops/orderhistory/pkg/filter"
	"github.com/courierops/orderhistory/pkg/loader"
	"github.com/courierops/orderhistory/pkg/perf"
)

const testDriver = "driver-warm"

func newService(t *testing.T, src *testutil.FakeSource, rec *perf.Recorder) *loader.Service {
	t.Helper()
	store, err := cache.NewTiered(cache.Config{MemorySize: 64})
	require.NoError(t, err)
	return loader.NewService(loader.Config{Source: src, Cache: store, Recorder: rec}, advisor.New(rec))
}

func TestWarmDriver_WarmsAllRecommendedViews(t *testing.T) {
	src := testutil.NewFakeSource()
	src.SeedDriver(testDriver, testutil.MakeOrders(testDriver, 10, time.Now().Add(-time.Hour)))
	rec := perf.NewRecorder(100)
	svc := newService(t, src, rec)

	w := New(svc, DefaultConfig())
	results := w.WarmDriver(context.Background(), testDriver, filter.TypeToday)

	// The advisor recommends every other known view.
	require.Len(t, results, len(filter.KnownTypes)-1)
	for _, r := range results {
		assert.NoError(t, r.Err, "view %s", r.Type)
		assert.NotEqual(t, filter.TypeToday, r.Type)
	}
}

func TestWarmDriver_WarmedViewHitsCache(t *testing.T) {
	src := testutil.NewFakeSource()
	src.SeedDriver(testDriver, testutil.MakeOrders(testDriver, 10, time.Now().Add(-time.Hour)))
	rec := perf.NewRecorder(100)
	svc := newService(t, src, rec)

	w := New(svc, DefaultConfig())
	results := w.WarmDriver(context.Background(), testDriver, filter.TypeToday)
	require.NotEmpty(t, results)

	// Opening a warmed view later must not go remote again.
	calls := src.CursorCalls()
	page, err := svc.GetPage(context.Background(), testDriver, filter.ThisWeek(time.Now(), filter.DefaultLimit))
	require.NoError(t, err)
	assert.True(t, page.FromCache)
	assert.Equal(t, calls, src.CursorCalls(), "warmed view must hit the cache")
}

func TestWarmDriver_UnknownDriverWarmsEmptyPages(t *testing.T) {
	rec := perf.NewRecorder(100)
	svc := newService(t, testutil.NewFakeSource(), rec)

	w := New(svc, DefaultConfig())
	results := w.WarmDriver(context.Background(), "nobody", filter.TypeToday)
	require.Len(t, results, len(filter.KnownTypes)-1)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestWarmDriver_ContextCancelled(t *testing.T) {
	src := testutil.NewFakeSource()
	src.SeedDriver(testDriver, testutil.MakeOrders(testDriver, 5, time.Now().Add(-time.Hour)))
	rec := perf.NewRecorder(100)
	svc := newService(t, src, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(svc, DefaultConfig())
	results := w.WarmDriver(ctx, testDriver, filter.TypeToday)
	require.Len(t, results, len(filter.KnownTypes)-1)
	for _, r := range results {
		assert.Error(t, r.Err)
	}
}
