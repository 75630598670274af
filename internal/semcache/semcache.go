// Package semcache is the embedding-keyed parse cache. A query whose
// embedding lands close enough to a previously parsed one reuses that parse
// without an LLM round trip.
package semcache

import (
	"context"
	"encoding/json"
	"time"

	"sooqsearch/internal/embedding"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/types"
)

// ParseStore is the slice of the store the cache needs.
type ParseStore interface {
	NearestParsed(ctx context.Context, embedding []float32) (*types.ParsedRecord, float64, error)
	UpsertParsed(ctx context.Context, queryText string, payload []byte, embedding []float32) error
	BumpParsedHit(ctx context.Context, id int64) error
	DeleteStaleParsed(ctx context.Context, minHits int, staleAfter, maxAge time.Duration) (int64, error)
}

// Cache looks up and stores parses by embedding proximity.
type Cache struct {
	store     ParseStore
	engine    embedding.Engine
	threshold float64 // cosine similarity floor, inclusive
}

// New creates a cache with the given similarity threshold.
func New(store ParseStore, engine embedding.Engine, threshold float64) *Cache {
	return &Cache{store: store, engine: engine, threshold: threshold}
}

// Lookup embeds the normalized query and returns the cached intent when a
// stored parse is at or above the similarity threshold. The embedding is
// returned for reuse so a subsequent Store call does not re-embed.
// An embedding failure disables the cache for this call only.
func (c *Cache) Lookup(ctx context.Context, normalized string) (*types.Intent, []float32, error) {
	vec, err := c.engine.Embed(ctx, normalized)
	if err != nil {
		logging.Get(logging.CategorySemCache).Warn("embed failed, cache disabled for call: %v", err)
		return nil, nil, err
	}

	rec, sim, err := c.store.NearestParsed(ctx, vec)
	if err != nil {
		logging.Get(logging.CategorySemCache).Warn("nearest lookup: %v", err)
		return nil, vec, nil
	}
	if rec == nil || sim < c.threshold {
		return nil, vec, nil
	}

	var intent types.Intent
	if err := json.Unmarshal(rec.Payload, &intent); err != nil {
		logging.Get(logging.CategorySemCache).Error("corrupt payload for %q: %v", rec.QueryText, err)
		return nil, vec, nil
	}

	if err := c.store.BumpParsedHit(ctx, rec.ID); err != nil {
		logging.Get(logging.CategorySemCache).Warn("bump hit: %v", err)
	}
	logging.Get(logging.CategorySemCache).Info("hit: %q ~ %q sim=%.3f", normalized, rec.QueryText, sim)
	return &intent, vec, nil
}

// Store persists a parse under the normalized query text. Pass the vector
// from Lookup to avoid a second embed; nil re-embeds.
func (c *Cache) Store(ctx context.Context, normalized string, intent *types.Intent, vec []float32) error {
	if vec == nil {
		var err error
		vec, err = c.engine.Embed(ctx, normalized)
		if err != nil {
			return err
		}
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return c.store.UpsertParsed(ctx, normalized, payload, vec)
}

// EvictionPolicy controls what DeleteStale removes.
type EvictionPolicy struct {
	MinHits    int
	StaleAfter time.Duration
	MaxAge     time.Duration
}

// Evict removes cold and expired entries per the policy.
func (c *Cache) Evict(ctx context.Context, policy EvictionPolicy) (int64, error) {
	return c.store.DeleteStaleParsed(ctx, policy.MinHits, policy.StaleAfter, policy.MaxAge)
}

// RunEvictor evicts on the interval until ctx is done. Meant to run in its
// own goroutine.
func (c *Cache) RunEvictor(ctx context.Context, interval time.Duration, policy EvictionPolicy) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Evict(ctx, policy); err != nil {
				logging.Get(logging.CategorySemCache).Error("eviction: %v", err)
			}
		}
	}
}
