// Package replay suppresses duplicate submissions within a TTL window.
// Callers that want dedup guarantees must supply an idempotency key or a
// request id; without either, replay protection is skipped for that
// request (a documented gap, not an error).
package replay

import (
	"context"
	"sync"
	"time"
)

// Cache records keys it has seen. The first Seen call for a key within the
// TTL returns false and arms the window; subsequent calls return true until
// the window elapses, after which the key counts as new again.
type Cache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Close() error
}

// DefaultSweepThreshold is the live-entry count past which the in-memory
// cache sweeps expired entries opportunistically. Sweeping on a threshold
// instead of a timer keeps the cache free of background goroutines.
const DefaultSweepThreshold = 20000

// MemoryCache is the in-process TTL cache. Expired entries are equivalent
// to absent; they are physically removed by the opportunistic sweep.
type MemoryCache struct {
	mu             sync.Mutex
	ttl            time.Duration
	sweepThreshold int
	entries        map[string]time.Time
	now            func() time.Time
}

// NewMemoryCache builds a cache with the given TTL. A TTL below one second
// is raised to one second. sweepThreshold <= 0 selects the default.
func NewMemoryCache(ttl time.Duration, sweepThreshold int) *MemoryCache {
	if ttl < time.Second {
		ttl = time.Second
	}
	if sweepThreshold <= 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	return &MemoryCache{
		ttl:            ttl,
		sweepThreshold: sweepThreshold,
		entries:        make(map[string]time.Time),
		now:            time.Now,
	}
}

func (c *MemoryCache) Seen(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) > c.sweepThreshold {
		c.sweep(now)
	}

	if exp, ok := c.entries[key]; ok && exp.After(now) {
		return true, nil
	}
	c.entries[key] = now.Add(c.ttl)
	return false, nil
}

// sweep removes expired entries. Caller holds the mutex.
func (c *MemoryCache) sweep(now time.Time) {
	for k, exp := range c.entries {
		if !exp.After(now) {
			delete(c.entries, k)
		}
	}
}

// Len reports the live entry count, expired entries included until swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error { return nil }
