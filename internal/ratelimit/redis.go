package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript implements the sliding window atomically: evict entries older
// than the window, admit if room, otherwise report the oldest admission so
// the caller can compute a retry hint. Scores are kept as strings on the
// way out because Lua numbers lose int64 nanosecond precision.
const allowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, now)
	redis.call('EXPIRE', key, ttl)
	return {1, '0'}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, oldest[2]}
`

// RedisLimiter shares one sliding window across gateway instances. Window
// semantics match MemoryLimiter.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisLimiter connects to redis and verifies the connection before
// returning a limiter.
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: int64(limit), window: window}, nil
}

// newRedisLimiterWithClient wires an existing client; used by tests.
func newRedisLimiterWithClient(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: int64(limit), window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window/time.Second) + 1

	res, err := r.client.Eval(ctx, allowScript, []string{"ratelimit:" + key},
		now, windowStart, r.limit, ttl).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	admitted, ok := res[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("rate limit script returned unexpected type %T", res[0])
	}
	if admitted == 1 {
		return true, 0, nil
	}

	oldestStr, ok := res[1].(string)
	if !ok {
		return false, 0, fmt.Errorf("rate limit script returned unexpected type %T", res[1])
	}
	oldest, err := strconv.ParseFloat(oldestStr, 64)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script returned bad score %q", oldestStr)
	}

	retry := time.Duration(int64(oldest) + r.window.Nanoseconds() - now)
	return false, ceilSeconds(retry), nil
}

func (r *RedisLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
