// Package cache provides a process-local, size-bounded TTL cache. The
// exact-match intent cache and the result-page cache are both instances of
// it. Cache failures are impossible by construction; callers treat the
// cache as strictly best-effort.
package cache

import (
	"sync"
	"time"
)

// TTLCache maps string keys to values of type V with per-cache TTL and a
// max-size bound. Eviction removes the oldest entry by write time.
type TTLCache[V any] struct {
	entries map[string]*entry[V]
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

type entry[V any] struct {
	value     V
	timestamp time.Time
}

// New creates a cache holding up to maxSize entries for ttl each.
func New[V any](maxSize int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries: make(map[string]*entry[V]),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value and whether it is present and fresh.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.timestamp) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value, evicting the oldest entry at capacity.
// Last writer wins on concurrent writes to the same key.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &entry[V]{value: value, timestamp: c.now()}
}

// Delete removes a key if present.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, including any not yet expired ones.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest removes the entry with the earliest write time.
// Caller holds the write lock.
func (c *TTLCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.timestamp
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
