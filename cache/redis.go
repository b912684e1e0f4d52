package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis transport failures so callers can distinguish
// "not cached" from "cache down" without importing the client package.
var ErrUnavailable = errors.New("cache: backend unavailable")

// Redis adapts a go-redis client to the Cache interface. Keys are
// namespaced as "<prefix>:<cacheName>:<key>".
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps client. prefix defaults to "authcore" when empty.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "authcore"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(cacheName, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, cacheName, key)
}

func (r *Redis) Get(ctx context.Context, cacheName, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(cacheName, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

func (r *Redis) Put(ctx context.Context, cacheName, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(cacheName, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, cacheName, key string) error {
	if err := r.client.Del(ctx, r.key(cacheName, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Contains(ctx context.Context, cacheName, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(cacheName, key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}
