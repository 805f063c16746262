// Package cache is the key-value collaborator behind one-time codes and rate
// limits. Reads are retried on transient failures; writes are not, because a
// lost reply cannot be told apart from a failed write.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisCache struct {
	client  redis.UniversalClient
	backoff func() retry.Backoff
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client: client,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(25*time.Millisecond))
		},
	}
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		v, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return retryable(err)
		}
		value, found = v, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, found, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var err error
		n, err = c.client.Exists(ctx, key).Result()
		if err != nil {
			return retryable(err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Incr bumps a counter and starts its window on first use. It returns the
// new count and the time left in the window.
func (c *RedisCache) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr %s: %w", key, err)
	}

	remaining, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	// A counter without a TTL is either new or lost its expire; start the window.
	if n == 1 || remaining < 0 {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire %s: %w", key, err)
		}
		remaining = window
	}

	return n, remaining, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func retryable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.RetryableError(err)
}
