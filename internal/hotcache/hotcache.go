// Package hotcache keeps an in-memory snapshot of the small catalog tables
// (top categories, cities, transaction types) so the matcher never touches
// the database on the hot path. The snapshot is immutable; refresh swaps
// the whole thing atomically.
package hotcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"sooqsearch/internal/logging"
	"sooqsearch/internal/types"
)

// Source loads the catalog tables.
type Source interface {
	TopCategories(ctx context.Context, limit int) ([]types.Category, error)
	ActiveCities(ctx context.Context) ([]types.City, error)
	TransactionTypes(ctx context.Context) ([]types.TransactionType, error)
}

// Snapshot is one immutable view of the catalog. Readers must not mutate
// the slices.
type Snapshot struct {
	Categories       []types.Category
	Cities           []types.City
	TransactionTypes []types.TransactionType
	LoadedAt         time.Time
}

// Config controls refresh behavior.
type Config struct {
	TTL            time.Duration
	TopNCategories int
}

// Cache holds the current snapshot and refreshes it when stale.
type Cache struct {
	source Source
	cfg    Config

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	now     func() time.Time
}

// New creates an empty cache. Call Initialize before serving.
func New(source Source, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.TopNCategories <= 0 {
		cfg.TopNCategories = 500
	}
	return &Cache{source: source, cfg: cfg, now: time.Now}
}

// Initialize performs the first load. Startup fails if the catalog cannot
// be read.
func (c *Cache) Initialize(ctx context.Context) error {
	snap, err := c.load(ctx)
	if err != nil {
		return fmt.Errorf("hotcache: initial load: %w", err)
	}
	c.current.Store(snap)
	return nil
}

// Snapshot returns the current view, refreshing first when it is stale.
// When a refresh fails the previous snapshot keeps serving.
func (c *Cache) Snapshot(ctx context.Context) *Snapshot {
	snap := c.current.Load()
	if snap == nil {
		// Initialize was skipped or failed; try a blocking load.
		loaded, err, _ := c.group.Do("refresh", func() (any, error) {
			return c.load(ctx)
		})
		if err != nil {
			logging.Get(logging.CategoryHotCache).Error("load failed with no prior snapshot: %v", err)
			return &Snapshot{}
		}
		snap = loaded.(*Snapshot)
		c.current.Store(snap)
		return snap
	}

	if c.now().Sub(snap.LoadedAt) < c.cfg.TTL {
		return snap
	}

	// Stale: refresh through singleflight so concurrent readers trigger at
	// most one load. Everyone blocks on the same refresh; a failure keeps
	// the stale snapshot.
	loaded, err, _ := c.group.Do("refresh", func() (any, error) {
		fresh := c.current.Load()
		if fresh != nil && c.now().Sub(fresh.LoadedAt) < c.cfg.TTL {
			return fresh, nil
		}
		return c.load(ctx)
	})
	if err != nil {
		logging.Get(logging.CategoryHotCache).Warn("refresh failed, serving stale snapshot: %v", err)
		return snap
	}

	next := loaded.(*Snapshot)
	c.current.Store(next)
	return next
}

func (c *Cache) load(ctx context.Context) (*Snapshot, error) {
	cats, err := c.source.TopCategories(ctx, c.cfg.TopNCategories)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	cities, err := c.source.ActiveCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}
	txs, err := c.source.TransactionTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transaction types: %w", err)
	}

	snap := &Snapshot{
		Categories:       cats,
		Cities:           cities,
		TransactionTypes: txs,
		LoadedAt:         c.now(),
	}
	logging.Get(logging.CategoryHotCache).Info("snapshot loaded: %d categories, %d cities, %d transaction types",
		len(cats), len(cities), len(txs))
	return snap, nil
}
