package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares a replay window across gateway instances. SET NX EX is
// the whole algorithm: the first writer arms the window, everyone else
// inside it is a duplicate.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection before
// returning a cache.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
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

	if ttl < time.Second {
		ttl = time.Second
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// newRedisCacheWithClient wires an existing client; used by tests.
func newRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Seen(ctx context.Context, key string) (bool, error) {
	recorded, err := c.client.SetNX(ctx, "replay:"+key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay check failed: %w", err)
	}
	return !recorded, nil
}

func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
