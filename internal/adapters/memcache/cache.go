// Package memcache provides the in-process tier of the result cache.
package memcache

import (
	"context"
	"errors"
	"time"

	"github.com/karlseguin/ccache/v2"

	"github.com/samirrijal/traveltime/internal/core/ports"
	"github.com/samirrijal/traveltime/internal/pkg/metrics"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

// Cache implements ports.CacheService in memory with LRU eviction.
type Cache struct {
	cache *ccache.Cache
}

// New creates a cache holding at most maxItems entries.
func New(maxItems int64) *Cache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	prune := uint32(maxItems / 10)
	if prune == 0 {
		prune = 1
	}
	return &Cache{cache: ccache.New(ccache.Configure().MaxSize(maxItems).ItemsToPrune(prune))}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	item := c.cache.Get(key)
	if item == nil || item.Expired() {
		return nil, ErrMiss
	}
	return item.Value().([]byte), nil
}

// Set stores a value with a TTL in seconds.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.cache.Set(key, value, time.Duration(ttlSeconds)*time.Second)
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int { return c.cache.ItemCount() }

// Close stops the background pruner.
func (c *Cache) Close() { c.cache.Stop() }

// Tiered reads through the local cache to a shared one. Values found in
// the shared tier are copied into the local tier for localTTL seconds.
type Tiered struct {
	local    *Cache
	shared   ports.CacheService
	localTTL int
}

// NewTiered layers local over shared. shared may be nil.
func NewTiered(local *Cache, shared ports.CacheService, localTTLSeconds int) *Tiered {
	return &Tiered{local: local, shared: shared, localTTL: localTTLSeconds}
}

// Get checks the local tier, then the shared tier.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := t.local.Get(ctx, key); err == nil {
		metrics.CacheHits.WithLabelValues("result_local").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("result_local").Inc()
	if t.shared == nil {
		return nil, ErrMiss
	}

	v, err := t.shared.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("result_shared").Inc()
		return nil, err
	}
	metrics.CacheHits.WithLabelValues("result_shared").Inc()
	_ = t.local.Set(ctx, key, v, t.localTTL)
	return v, nil
}

// Set writes both tiers. A shared-tier failure is returned after the
// local write.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	localTTL := t.localTTL
	if ttlSeconds < localTTL {
		localTTL = ttlSeconds
	}
	_ = t.local.Set(ctx, key, value, localTTL)
	if t.shared == nil {
		return nil
	}
	return t.shared.Set(ctx, key, value, ttlSeconds)
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.local.Delete(ctx, key)
	if t.shared == nil {
		return nil
	}
	return t.shared.Delete(ctx, key)
}
