package di

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"learnmap-backend/application/ports"
)

// LocalCache implements ports.Cache on top of an in-process go-cache store.
// Values keep their concrete types, so query handlers can type-assert
// cached results directly.
type LocalCache struct {
	store *gocache.Cache
}

// NewLocalCache creates a new in-process cache
func NewLocalCache() *LocalCache {
	return &LocalCache{
		store: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Get retrieves a value from cache
func (c *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores a value in cache with TTL in seconds
func (c *LocalCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.store.Set(key, value, time.Duration(ttl)*time.Second)
	return nil
}

// Delete removes a value from cache
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Clear removes all values from cache
func (c *LocalCache) Clear(ctx context.Context) error {
	c.store.Flush()
	return nil
}

// RedisCache implements ports.Cache against a shared Redis instance. Values
// round-trip through JSON, so a cached struct comes back as a generic map
// rather than its original type; callers that need the concrete type treat
// that as a miss and read through.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache backed by Redis
func NewRedisCache(address string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", address, err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a value in cache with TTL in seconds
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.client.Set(ctx, key, raw, time.Duration(ttl)*time.Second).Err()
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Clear removes all values from cache
func (c *RedisCache) Clear(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}

// NewCache selects the cache backend: Redis when an address is configured,
// the in-process store otherwise.
func NewCache(redisAddress string) (ports.Cache, error) {
	if redisAddress != "" {
		return NewRedisCache(redisAddress)
	}
	return NewLocalCache(), nil
}
