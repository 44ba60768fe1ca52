package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rollupKeyPrefix = "tradedesk:rollup:"

// RollupCache stores computed monthly rollups. A miss returns ok=false.
type RollupCache interface {
	Get(ctx context.Context, months []string) (rollup []MonthRollup, ok bool, err error)
	Set(ctx context.Context, months []string, rollup []MonthRollup) error
	Invalidate(ctx context.Context) error
}

// RedisRollupCache keeps rollups in Redis under a shared key prefix
type RedisRollupCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisRollupCache wraps an existing client; the caller owns the client
func NewRedisRollupCache(client redis.UniversalClient, ttl time.Duration, log *zap.Logger) *RedisRollupCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRollupCache{client: client, ttl: ttl, log: log}
}

// rollupKey is the cache key for a month filter; an empty filter is "all"
func rollupKey(months []string) string {
	if len(months) == 0 {
		return rollupKeyPrefix + "all"
	}
	return rollupKeyPrefix + strings.Join(months, ",")
}

func (c *RedisRollupCache) Get(ctx context.Context, months []string) ([]MonthRollup, bool, error) {
	raw, err := c.client.Get(ctx, rollupKey(months)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rollup cache: %w", err)
	}

	var rollup []MonthRollup
	if err := json.Unmarshal(raw, &rollup); err != nil {
		c.log.Warn("Discarding corrupt rollup cache entry", zap.Error(err))
		return nil, false, nil
	}
	return rollup, true, nil
}

func (c *RedisRollupCache) Set(ctx context.Context, months []string, rollup []MonthRollup) error {
	raw, err := json.Marshal(rollup)
	if err != nil {
		return fmt.Errorf("failed to marshal rollup: %w", err)
	}
	if err := c.client.Set(ctx, rollupKey(months), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write rollup cache: %w", err)
	}
	return nil
}

// Invalidate removes every cached rollup
func (c *RedisRollupCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, rollupKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan rollup cache: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete rollup cache keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
