package tle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCache shares downloaded TLE files between hosts. Each brand is one
// hash holding the file body and its download time.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps client. Entries expire after ttl; zero keeps them.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "track:tle"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient connects to a single Redis node.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (c *RedisCache) key(brand string) string {
	return c.prefix + ":" + cacheBrand(brand)
}

// Put stores data for brand, replacing any previous file.
func (c *RedisCache) Put(ctx context.Context, brand string, data []byte, fetchedAt time.Time) error {
	key := c.key(brand)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "data", data, "fetched_at", fetchedAt.Unix())
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Latest returns the stored file for brand, or ErrCacheMiss.
func (c *RedisCache) Latest(ctx context.Context, brand string) ([]byte, time.Time, error) {
	key := c.key(brand)
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis get %s: %w", key, err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	unix, err := strconv.ParseInt(fields["fetched_at"], 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis entry %s has bad fetched_at %q: %w", key, fields["fetched_at"], err)
	}
	return []byte(data), time.Unix(unix, 0).UTC(), nil
}
