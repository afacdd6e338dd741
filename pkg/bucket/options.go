package bucket

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/heywhy/bucket/internal/loader"
	"github.com/heywhy/bucket/internal/manifest"
	"github.com/heywhy/bucket/internal/storage"
)

// Options configures where and how component sources are loaded.
type Options = loader.Options

// Filter rewrites ids by prefix.
type Filter = loader.Filter

// CachePolicy controls the persistent source cache.
type CachePolicy = loader.CachePolicy

// Fetcher reads source text from a location.
type Fetcher = loader.Fetcher

// DefaultOptions returns base "app", extension ".yaml", caching off.
func DefaultOptions() Options {
	return loader.DefaultOptions()
}

type settings struct {
	options  Options
	backend  storage.Backend
	fetcher  loader.Fetcher
	tracer   trace.Tracer
	catalog  *manifest.Catalog
	clock    func() time.Time
	debounce time.Duration
	closers  []func() error
}

// Option configures a Bucket.
type Option func(*settings)

// WithOptions sets the initial loader options.
func WithOptions(opts Options) Option {
	return func(s *settings) {
		s.options = opts
	}
}

// WithStorage persists the component cache in backend instead of memory.
func WithStorage(backend storage.Backend) Option {
	return func(s *settings) {
		if backend != nil {
			s.backend = backend
		}
	}
}

// WithFetcher replaces the default file/http fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(s *settings) {
		s.fetcher = fetcher
	}
}

// WithTracer records resolve and load spans with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

// WithCatalog sets the manifest kinds available to loaded sources.
func WithCatalog(catalog *manifest.Catalog) Option {
	return func(s *settings) {
		s.catalog = catalog
	}
}

// WithClock overrides time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.clock = now
	}
}

// WithWatchDebounce sets the quiet period used by Watch.
func WithWatchDebounce(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// withCloser registers a cleanup run by Close, in reverse order.
func withCloser(fn func() error) Option {
	return func(s *settings) {
		s.closers = append(s.closers, fn)
	}
}
