package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is a process-local Cache backed by a map per cache name. Expired
// entries are dropped lazily on read and by Sweep.
type Memory struct {
	mu     sync.RWMutex
	caches map[string]map[string]memoryEntry
	now    func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		caches: make(map[string]map[string]memoryEntry),
		now:    time.Now,
	}
}

// NewMemoryWithClock is NewMemory with an injectable clock for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	if now != nil {
		m.now = now
	}
	return m
}

func (m *Memory) Get(_ context.Context, cacheName, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.caches[cacheName][key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.caches[cacheName], key)
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Put(_ context.Context, cacheName, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	bucket, ok := m.caches[cacheName]
	if !ok {
		bucket = make(map[string]memoryEntry)
		m.caches[cacheName] = bucket
	}
	bucket[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, cacheName, key string) error {
	m.mu.Lock()
	delete(m.caches[cacheName], key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Contains(ctx context.Context, cacheName, key string) (bool, error) {
	_, ok, err := m.Get(ctx, cacheName, key)
	return ok, err
}

// Sweep removes all expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	for _, bucket := range m.caches {
		for key, entry := range bucket {
			if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
				delete(bucket, key)
				removed++
			}
		}
	}
	m.mu.Unlock()
	return removed
}
