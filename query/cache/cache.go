// Package cache memoizes resolved include plans per query fingerprint.
package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultMaxEntries bounds a cache built with New(0).
const DefaultMaxEntries = 1024

// Cache is a bounded, concurrency-safe map from fingerprint to V. Every
// entry costs 1, so the capacity is an entry count. Writes are admitted
// asynchronously; a Get right after Set may miss until Wait returns.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
}

// New creates a cache holding up to maxEntries values.
func New[V any](maxEntries int64) (*Cache[V], error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache[V]{store: store}, nil
}

// Get returns the value stored for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Set stores value for key. It reports whether the write was admitted.
func (c *Cache[V]) Set(key string, value V) bool {
	return c.store.Set(key, value, 1)
}

// Wait blocks until pending writes are applied.
func (c *Cache[V]) Wait() { c.store.Wait() }

// Invalidate removes key.
func (c *Cache[V]) Invalidate(key string) { c.store.Del(key) }

// Clear removes every entry.
func (c *Cache[V]) Clear() { c.store.Clear() }

// Stats reports hit and miss counters.
func (c *Cache[V]) Stats() Stats {
	m := c.store.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), HitRate: m.Ratio()}
}

// Close releases the cache's background goroutines.
func (c *Cache[V]) Close() { c.store.Close() }

// Stats represents cache statistics
type Stats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
}
