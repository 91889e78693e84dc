package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

const snapshotKey = "catalog:snapshot"

// RedisCache caches the source provider's snapshot in Redis so every API
// replica prices against the same menu for the TTL window.
type RedisCache struct {
	redis  *redis.Client
	source Provider
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisCache wraps source with a Redis-backed snapshot cache.
func NewRedisCache(redisClient *redis.Client, source Provider, ttl time.Duration, logger *logging.Logger) *RedisCache {
	if source == nil {
		panic("catalog: source provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{redis: redisClient, source: source, ttl: ttl, logger: logger}
}

// Snapshot returns the cached catalog, refilling from the source on a miss.
// Redis failures fall back to the source.
func (c *RedisCache) Snapshot(ctx context.Context) (*Catalog, error) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, snapshotKey).Bytes()
		switch {
		case err == nil:
			cached, decodeErr := Decode(data)
			if decodeErr == nil {
				return cached, nil
			}
			c.logger.Warn("catalog cache entry invalid", "error", decodeErr)
		case errors.Is(err, redis.Nil):
		default:
			c.logger.Warn("catalog cache read failed", "error", err)
		}
	}

	snapshot, err := c.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: load source: %w", err)
	}
	if c.redis != nil {
		if err := c.store(ctx, snapshot); err != nil {
			c.logger.Warn("catalog cache write failed", "error", err)
		}
	}
	return snapshot, nil
}

func (c *RedisCache) store(ctx context.Context, snapshot *Catalog) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("catalog: marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("catalog: set snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("catalog: invalidate: %w", err)
	}
	return nil
}

func (c *RedisCache) ListServices(ctx context.Context) ([]Service, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Services, nil
}

func (c *RedisCache) ListCategories(ctx context.Context) ([]Category, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Categories, nil
}

func (c *RedisCache) ListAddOns(ctx context.Context) ([]AddOn, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.AddOns, nil
}

func (c *RedisCache) GetServiceByID(ctx context.Context, id string) (*Service, error) {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	svc, ok := snapshot.Service(id)
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &svc, nil
}
