package hotcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"sooqsearch/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu    sync.Mutex
	loads int32
	fail  bool
	cats  []types.Category
}

func (f *fakeSource) TopCategories(_ context.Context, _ int) ([]types.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	atomic.AddInt32(&f.loads, 1)
	if f.fail {
		return nil, errors.New("db down")
	}
	return f.cats, nil
}

func (f *fakeSource) ActiveCities(context.Context) ([]types.City, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("db down")
	}
	return []types.City{{ID: 1, NameAR: "دمشق", NameEN: "Damascus"}}, nil
}

func (f *fakeSource) TransactionTypes(context.Context) ([]types.TransactionType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("db down")
	}
	return []types.TransactionType{{ID: 1, Slug: types.TxForSale}}, nil
}

func (f *fakeSource) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func newTestCache(t *testing.T, src *fakeSource) (*Cache, *time.Time) {
	t.Helper()
	c := New(src, Config{TTL: time.Minute, TopNCategories: 10})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, &clock
}

func TestSnapshot_FreshServedWithoutReload(t *testing.T) {
	src := &fakeSource{cats: []types.Category{{ID: 1, Slug: "cars"}}}
	c, _ := newTestCache(t, src)

	before := atomic.LoadInt32(&src.loads)
	snap := c.Snapshot(context.Background())
	if len(snap.Categories) != 1 || snap.Categories[0].Slug != "cars" {
		t.Fatalf("snapshot = %+v", snap.Categories)
	}
	if got := atomic.LoadInt32(&src.loads); got != before {
		t.Fatalf("fresh snapshot reloaded: loads %d -> %d", before, got)
	}
}

func TestSnapshot_RefreshAfterTTL(t *testing.T) {
	src := &fakeSource{cats: []types.Category{{ID: 1}}}
	c, clock := newTestCache(t, src)

	*clock = clock.Add(2 * time.Minute)
	src.mu.Lock()
	src.cats = []types.Category{{ID: 1}, {ID: 2}}
	src.mu.Unlock()

	snap := c.Snapshot(context.Background())
	if len(snap.Categories) != 2 {
		t.Fatalf("stale snapshot not refreshed: %d categories", len(snap.Categories))
	}
}

func TestSnapshot_FailedRefreshKeepsPrior(t *testing.T) {
	src := &fakeSource{cats: []types.Category{{ID: 1}}}
	c, clock := newTestCache(t, src)

	*clock = clock.Add(2 * time.Minute)
	src.setFail(true)

	snap := c.Snapshot(context.Background())
	if len(snap.Categories) != 1 {
		t.Fatalf("prior snapshot lost on failed refresh: %+v", snap.Categories)
	}
}

func TestSnapshot_ConcurrentReadersSingleLoad(t *testing.T) {
	src := &fakeSource{cats: []types.Category{{ID: 1}}}
	c, clock := newTestCache(t, src)

	*clock = clock.Add(2 * time.Minute)
	before := atomic.LoadInt32(&src.loads)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Snapshot(context.Background())
		}()
	}
	wg.Wait()

	// Singleflight coalesces concurrent refreshes; allow a couple of loads
	// for goroutines that arrive after a flight completes.
	if got := atomic.LoadInt32(&src.loads) - before; got > 2 {
		t.Fatalf("expected coalesced refresh, got %d loads", got)
	}
}
