// Package cachemanager holds short-lived in-process caches. The loader keeps
// fetched component sources here so that a single run does not refetch a
// location it already read, independently of the persistent cache.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed, expiring key/value cache.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
	Len() int
}
