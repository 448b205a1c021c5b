package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/coronary-score-server/internal/domain"
)

const keyPrefix = "coronary:score:"

// RedisCache is the shared tier. Every call goes through a circuit breaker
// so an unreachable Redis degrades to memory-only caching instead of adding
// latency to each request.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewRedisCache connects to the Redis instance at config.RedisURL.
func NewRedisCache(logger *logrus.Logger, config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(logger, client, config.DefaultTTL), nil
}

func newRedisCache(logger *logrus.Logger, client *redis.Client, ttl time.Duration) *RedisCache {
	settings := gobreaker.Settings{
		Name:        "RedisResultCache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from,
				"to_state":        to,
			}).Warn("Circuit breaker state changed")
		},
	}

	return &RedisCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		ttl:     ttl,
		logger:  logger,
	}
}

// Get reads key. A miss is not an error and does not count against the
// breaker.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	if v == nil {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok || b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

// Set writes key with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, keyPrefix+key).Err()
	})
	return err
}

// State returns the breaker state for health reporting.
func (r *RedisCache) State() string {
	return r.breaker.State().String()
}

// Close closes the Redis client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
