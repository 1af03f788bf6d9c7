// Package cache wraps ristretto for the system's two in-process caches: the
// short-TTL permission cache (spec.md §4.6/§5) and the feature-flag read
// cache (internal/platform/featureflags). The vector pipeline does not use
// it; its worker pool keeps semantic hashes in its own in-memory map.
// Grounded on the example pack's template.TemplateCache.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Config configures a Cache's size and default entry lifetime.
type Config struct {
	MaxEntries int64
	TTL        time.Duration
}

// Cache is a generic ristretto-backed TTL cache keyed by string.
type Cache[V any] struct {
	cache *ristretto.Cache[string, V]
	ttl   time.Duration
}

// New builds a Cache with sensible defaults when cfg is left zero-valued.
func New[V any](cfg Config) (*Cache[V], error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cache[V]{cache: c, ttl: ttl}, nil
}

// Get returns the cached value and true, or the zero value and false on a
// miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil {
		var zero V
		return zero, false
	}
	return c.cache.Get(key)
}

// Set stores value under key with the cache's configured TTL.
func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	c.cache.SetWithTTL(key, value, 1, c.ttl)
}

// Del evicts key, used when the underlying record changes before its TTL
// expires (e.g. a membership mutation invalidating a permission entry).
func (c *Cache[V]) Del(key string) {
	if c == nil {
		return
	}
	c.cache.Del(key)
}

// Close releases cache resources.
func (c *Cache[V]) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
