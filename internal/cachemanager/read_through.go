package cachemanager

import (
	"context"
	"time"
)

// ReadThrough answers from cache and falls back to fn on a miss, storing
// what fn returned. Errors are never cached.
type ReadThrough[K ~string, V any] struct {
	cache  CacheManager[K, V]
	fn     func(ctx context.Context, key K) (V, error)
	ttl    time.Duration
	bypass bool
}

// NewReadThrough wraps fn. With bypass set every call goes to fn.
func NewReadThrough[K ~string, V any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, key K) (V, error),
	ttl time.Duration,
	bypass bool,
) *ReadThrough[K, V] {
	return &ReadThrough[K, V]{cache: cache, fn: fn, ttl: ttl, bypass: bypass}
}

// Get returns the cached value for key or fetches it. hit reports whether
// the cache answered.
func (r *ReadThrough[K, V]) Get(ctx context.Context, key K) (value V, hit bool, err error) {
	if r.bypass {
		value, err = r.fn(ctx, key)
		return value, false, err
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, true, nil
	}

	value, err = r.fn(ctx, key)
	if err != nil {
		return value, false, err
	}
	r.cache.Set(ctx, key, value, r.ttl)
	return value, false, nil
}

// Invalidate drops key so the next Get goes to fn.
func (r *ReadThrough[K, V]) Invalidate(ctx context.Context, key K) error {
	return r.cache.Delete(ctx, key)
}

// Reset drops every cached value.
func (r *ReadThrough[K, V]) Reset(ctx context.Context) error {
	return r.cache.Flush(ctx)
}
