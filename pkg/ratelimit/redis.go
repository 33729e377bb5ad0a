package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter enforces a fixed window shared across instances via Redis.
// The counter is an INCR with a window-length expiry set on first hit, so
// every instance sees the same quota.
//
// Errors are returned to the caller rather than swallowed: the security
// pipeline treats a limiter failure as an internal failure and denies the
// request (gate checks fail closed).
type RedisLimiter struct {
	client *redis.Client
	config Config
	prefix string
}

// NewRedisLimiter creates a Redis-backed fixed-window limiter
func NewRedisLimiter(client *redis.Client, config Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		config: config,
		prefix: prefix,
	}
}

// Evaluate counts the request against the shared window for key
func (l *RedisLimiter) Evaluate(ctx context.Context, key string) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis incr: %w", err)
	}

	if count == 1 {
		// First hit in this window owns the expiry. A crash between INCR and
		// PEXPIRE would leave the key unexpired, so NX-set it on later hits
		// too if it is missing.
		if err := l.client.PExpire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("redis pexpire: %w", err)
		}
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("redis pttl: %w", err)
	}
	if ttl < 0 {
		// Key exists without expiry; repair it
		if err := l.client.PExpire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("redis pexpire: %w", err)
		}
		ttl = l.config.Window
	}

	resetTime := time.Now().Add(ttl)

	if count > int64(l.config.MaxRequests) {
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetTime: resetTime,
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: l.config.MaxRequests - int(count),
		ResetTime: resetTime,
	}, nil
}

// Reset clears the window for key (admin/testing use)
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}

// Config returns the limiter configuration
func (l *RedisLimiter) Config() Config {
	return l.config
}
