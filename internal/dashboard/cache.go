package dashboard

import (
	"strings"
	"sync"
	"time"
)

// AggregateCache holds computed aggregates for a fixed time-to-live
type AggregateCache[V any] struct {
	data    map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	stop    sync.Once

	hits   int64
	misses int64
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewAggregateCache creates a cache and starts its cleanup loop. Call Stop
// to release it.
func NewAggregateCache[V any](ttl time.Duration) *AggregateCache[V] {
	cache := &AggregateCache[V]{
		data:    make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// WithClock replaces the clock used for expiry.
func (c *AggregateCache[V]) WithClock(now func() time.Time) *AggregateCache[V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns a live entry for key.
func (c *AggregateCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (c *AggregateCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
}

// DeleteByPrefix removes all entries with keys starting with the given prefix
func (c *AggregateCache[V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
}

// GetOrSet returns the cached value for key, or computes and stores it.
// Errors are not cached.
func (c *AggregateCache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := compute()
	if err != nil {
		return value, err
	}
	c.Set(key, value)
	return value, nil
}

// Stats returns cache statistics
func (c *AggregateCache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{Size: len(c.data), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *AggregateCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *AggregateCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (c *AggregateCache[V]) Stop() {
	c.stop.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}
