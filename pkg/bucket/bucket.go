package bucket

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/heywhy/bucket/internal/cache"
	"github.com/heywhy/bucket/internal/events"
	"github.com/heywhy/bucket/internal/loader"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/manifest"
	"github.com/heywhy/bucket/internal/pubsub"
	"github.com/heywhy/bucket/internal/registry"
	"github.com/heywhy/bucket/internal/storage"
	"github.com/heywhy/bucket/internal/watcher"
)

// LoaderNamespace is the cache namespace holding fetched sources, fixed so
// a persistent backend can be reused across processes.
const LoaderNamespace = "loader"

// Cache is a namespaced store persisted in the bucket's storage backend.
type Cache = cache.Cache

// Bucket wires a registry, a source loader and a general event bus.
// Create one with New; it is safe for concurrent use.
type Bucket struct {
	registry *registry.Registry
	loader   *loader.Loader
	general  *events.Bus
	backend  storage.Backend
	broker   *pubsub.Broker[Notification]

	debounce time.Duration

	closeOnce sync.Once
	closers   []func() error
}

// New builds a bucket. Without WithStorage the component cache lives in
// memory.
func New(opts ...Option) (*Bucket, error) {
	s := settings{
		options:  loader.DefaultOptions(),
		backend:  storage.NewMemory(),
		debounce: watcher.DefaultConfig("").DebounceDur,
	}
	for _, opt := range opts {
		opt(&s)
	}

	b := &Bucket{
		general:  events.New(),
		backend:  s.backend,
		broker:   pubsub.NewBroker[Notification](),
		debounce: s.debounce,
		closers:  s.closers,
	}

	regOpts := []registry.Option{registry.WithObserver(b)}
	if s.tracer != nil {
		regOpts = append(regOpts, registry.WithTracer(s.tracer))
	}
	b.registry = registry.New(regOpts...)

	evaluator := manifest.NewEvaluator(b.registry, s.catalog)
	evaluator.SetTracer(s.tracer)

	store, err := cache.New(s.backend, cache.WithNamespace(LoaderNamespace))
	if err != nil {
		b.broker.Close()
		return nil, fmt.Errorf("opening source cache: %w", err)
	}

	loaderOpts := []loader.Option{
		loader.WithEvaluator(evaluator),
		loader.WithCache(store),
		loader.WithObserver(b),
		loader.WithFetcher(s.fetcher),
		loader.WithTracer(s.tracer),
		loader.WithClock(s.clock),
	}
	b.loader, err = loader.New(s.options, loaderOpts...)
	if err != nil {
		b.broker.Close()
		return nil, err
	}
	b.registry.SetLoader(b.loader)

	log.Debug(log.CatRegistry, "bucket ready", "base", b.loader.Options().Base)
	return b, nil
}

// Register adds or replaces the component named by spec.
func (b *Bucket) Register(spec IDSpec, factory Factory, opts ...DefinitionOption) error {
	return b.registry.Register(spec.ID, spec.Dependencies, factory, opts...)
}

// Resolve constructs id and its dependencies. Ids that are not registered
// are loaded from their source first.
func (b *Bucket) Resolve(ctx context.Context, id string) (any, error) {
	return b.registry.Resolve(ctx, id)
}

// Tree expands the dependency tree of id without instantiating it.
func (b *Bucket) Tree(ctx context.Context, id string) (*Node, error) {
	return b.registry.Tree(ctx, id)
}

// Lookup returns the definition registered under id.
func (b *Bucket) Lookup(id string) (*Definition, bool) {
	return b.registry.Lookup(id)
}

// IDs lists the registered ids in sorted order.
func (b *Bucket) IDs() []string {
	return b.registry.IDs()
}

// Configure replaces the loader options. An invalid expiry fails with
// ErrInvalidCacheExpiry and keeps the previous options.
func (b *Bucket) Configure(opts Options) error {
	return b.loader.Configure(opts)
}

// Options returns the loader options in effect.
func (b *Bucket) Options() Options {
	return b.loader.Options()
}

// Locate returns the location id would be loaded from.
func (b *Bucket) Locate(id string) string {
	return b.loader.Resolve(id)
}

// Load fetches the raw text of each file without evaluating it.
func (b *Bucket) Load(ctx context.Context, files ...string) ([]string, error) {
	return b.loader.Require(ctx, files...)
}

// Preload fetches and evaluates the sources of ids so their components are
// registered before anyone resolves them.
func (b *Bucket) Preload(ctx context.Context, ids ...string) error {
	return b.loader.Load(ctx, ids...)
}

// Diff compares the cached source of id with a fresh fetch.
func (b *Bucket) Diff(ctx context.Context, id string) (*loader.Diff, error) {
	return b.loader.Diff(ctx, id)
}

// CachedLocations lists the source locations held by the cache.
func (b *Bucket) CachedLocations() ([]string, error) {
	return b.loader.CachedLocations()
}

// BurstCache drops every cached source.
func (b *Bucket) BurstCache() error {
	return b.loader.BurstCache()
}

// BurstAllCache wipes every cache namespace in the storage backend,
// including ones created with CacheSystem.
func (b *Bucket) BurstAllCache() error {
	if err := b.loader.BurstCache(); err != nil {
		return err
	}
	return cache.BurstAll(b.backend)
}

// CacheSystem returns a fresh cache namespace on the bucket's backend for
// application use.
func (b *Bucket) CacheSystem() (*Cache, error) {
	return cache.New(b.backend)
}

// CacheNamespaces lists the namespaces present in the backend.
func (b *Bucket) CacheNamespaces() ([]string, error) {
	return cache.Namespaces(b.backend)
}

// Watch invalidates cached sources as files under a local base change,
// until ctx is done. onBatch, when set, sees each batch of changed paths.
func (b *Bucket) Watch(ctx context.Context, onBatch func([]string)) error {
	base := b.loader.Options().Base
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return fmt.Errorf("cannot watch remote base %s", base)
	}

	cfg := watcher.DefaultConfig(base)
	cfg.DebounceDur = b.debounce
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	return w.Run(ctx, pathInvalidator{loader: b.loader}, onBatch)
}

// pathInvalidator maps watched file paths back to cached locations, which
// may spell the same file differently ("./app/A.yaml" vs "app/A.yaml").
type pathInvalidator struct {
	loader *loader.Loader
}

func (p pathInvalidator) Invalidate(path string) error {
	if err := p.loader.Invalidate(path); err != nil {
		return err
	}
	locations, err := p.loader.CachedLocations()
	if err != nil {
		return err
	}
	clean := filepath.Clean(path)
	for _, location := range locations {
		if location != path && filepath.Clean(location) == clean {
			if err := p.loader.Invalidate(location); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the event stream and any resources opened for the bucket.
func (b *Bucket) Close() error {
	var errs []error
	b.closeOnce.Do(func() {
		b.broker.Close()
		for i := len(b.closers) - 1; i >= 0; i-- {
			if err := b.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
