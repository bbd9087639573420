// Package ratelimit bounds ingestion per logical source with a sliding
// 60-second window. The gate runs first, so only authenticated callers
// ever reach a bucket.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the admission control contract. retryAfter is only meaningful
// when allowed is false: it is the time until the oldest admission leaves
// the window, rounded up to whole seconds, never below one second.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Close() error
}

// ceilSeconds rounds d up to whole seconds with a floor of one second.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= time.Second {
		return time.Second
	}
	if d%time.Second == 0 {
		return d
	}
	return (d/time.Second + 1) * time.Second
}

// NoopLimiter always admits. Used when rate limiting is disabled.
type NoopLimiter struct{}

func (NoopLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return true, 0, nil
}

func (NoopLimiter) Close() error { return nil }
