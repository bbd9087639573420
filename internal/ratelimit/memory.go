package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process sliding-window limiter. Buckets are
// created lazily per key and hold admission timestamps inside the trailing
// window. A single coarse mutex covers all buckets; source cardinality is
// small and fixed.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter builds a limiter admitting at most limit requests per
// key within the trailing window. A limit below one is raised to one.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow evicts expired admissions for key, then either denies with a retry
// hint or records now and admits.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	q := l.buckets[key]
	keep := 0
	for ; keep < len(q); keep++ {
		if !q[keep].Before(cutoff) {
			break
		}
	}
	q = q[keep:]

	if len(q) >= l.limit {
		l.buckets[key] = q
		retry := q[0].Add(l.window).Sub(now)
		return false, ceilSeconds(retry), nil
	}

	l.buckets[key] = append(q, now)
	return true, 0, nil
}

func (l *MemoryLimiter) Close() error { return nil }
