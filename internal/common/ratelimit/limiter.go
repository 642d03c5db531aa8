// internal/common/ratelimit/limiter.go

// Package ratelimit provides a Redis-backed fixed-window rate limiter.
// Counters live in Redis rather than a process-global map so limits hold
// across restarts and replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a keyed action is allowed inside a window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (bool, error)
}

// RedisLimiter implements Limiter with INCR + EXPIRE per window bucket.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow increments the window counter for key and reports whether the
// count is still within max. The first hit in a window sets the TTL.
func (l *RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, error) {
	bucket := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, bucket, window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire failed: %w", err)
		}
	}

	return count <= int64(max), nil
}

// NoopLimiter always allows. Used when rate limiting is disabled.
type NoopLimiter struct{}

func (NoopLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, error) {
	return true, nil
}
