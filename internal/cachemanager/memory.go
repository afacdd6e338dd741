package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/heywhy/bucket/internal/log"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Memory is a CacheManager backed by go-cache.
type Memory[K ~string, V any] struct {
	name  string
	cache *gocache.Cache
}

var _ CacheManager[string, string] = (*Memory[string, string])(nil)

// NewMemory creates a cache; name only tags log lines.
func NewMemory[K ~string, V any](name string, defaultExpiration, cleanupInterval time.Duration) *Memory[K, V] {
	c := gocache.New(defaultExpiration, cleanupInterval)
	c.OnEvicted(func(key string, _ any) {
		log.Debug(log.CatCache, "evicted", "cache", name, "key", key)
	})
	return &Memory[K, V]{name: name, cache: c}
}

// Get returns the value under key. Values of another type count as a miss.
func (m *Memory[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V

	value, found := m.cache.Get(string(key))
	if !found {
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "unexpected value type", "cache", m.name, "key", key)
		return zero, false
	}
	return v, true
}

// GetWithRefresh returns the value under key and restarts its ttl.
func (m *Memory[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	value, found := m.Get(ctx, key)
	if found {
		m.Set(ctx, key, value, ttl)
	}
	return value, found
}

// Set stores value under key. ttl 0 uses the cache default.
func (m *Memory[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(string(key), value, ttl)
}

// Delete removes keys; missing keys are ignored.
func (m *Memory[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, key := range keys {
		m.cache.Delete(string(key))
	}
	return nil
}

// Flush removes every item.
func (m *Memory[K, V]) Flush(_ context.Context) error {
	m.cache.Flush()
	return nil
}

// Len counts items, including expired ones not yet cleaned up.
func (m *Memory[K, V]) Len() int {
	return m.cache.ItemCount()
}
