// Package cache defines the generic named-cache collaborator consumed by
// the security core, plus in-memory and Redis implementations.
//
// The cache is an accelerator only. Every consumer keeps its authoritative
// state in-process and must behave correctly (just slower) when the cache
// is absent, unavailable, or evicts early.
package cache

import (
	"context"
	"time"
)

// Cache is a generic named key-value cache. Entries are grouped by
// cacheName so independent consumers cannot collide on keys.
type Cache interface {
	Get(ctx context.Context, cacheName, key string) (string, bool, error)
	Put(ctx context.Context, cacheName, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, cacheName, key string) error
	Contains(ctx context.Context, cacheName, key string) (bool, error)
}
