// Package cache wraps Redis behind a small interface so callers can run
// with or without a cache (a nil Cache is always a miss).
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a namespaced string cache.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns "" with a nil error on a miss.
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
	Key(kind, id string) string
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedis connects a Cache to the Redis instance at addr. Keys are
// prefixed with namespace to keep several deployments apart on one server.
func NewRedis(addr, namespace string) Cache {
	return &redisCache{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
	}
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *redisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) Key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, kind, id)
}
