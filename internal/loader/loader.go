// Package loader locates, fetches and evaluates component sources for ids
// the registry does not know yet.
//
// An id becomes a location by the first matching filter, or by joining it
// to the base; the default extension is appended unless the location
// already ends with an extension the evaluator understands. Fetching goes
// through an optional persistent cache whose entries are purged as a whole
// once the configured expiry has passed.
package loader

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/heywhy/bucket/internal/cache"
	"github.com/heywhy/bucket/internal/cachemanager"
	"github.com/heywhy/bucket/internal/events"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/registry"
	"github.com/heywhy/bucket/internal/tracing"
)

// Event name prefixes fired on the loader bus.
const (
	EventBeforeLoad = "beforeload."
	EventAfterLoad  = "afterload."
)

// BookkeepingKey is the cache key holding the expiry record.
const BookkeepingKey = "Cache"

// Evaluator turns fetched source text into registrations.
type Evaluator interface {
	Evaluate(ctx context.Context, location, text string) error
	Extensions() []string
}

// Observer is told about each id as it is fetched.
type Observer interface {
	SourceLoading(id, location string)
	SourceLoaded(id, location string)
}

// Source is one fetched location.
type Source struct {
	ID       string
	Location string
	Text     string
}

type bookkeeping struct {
	Updated int64 `json:"updated"`
	Expires int64 `json:"expires"`
}

// Loader resolves ids to locations and loads them.
type Loader struct {
	mu   sync.RWMutex
	opts Options
	ttl  time.Duration

	bus       *events.Bus
	evaluator Evaluator
	observer  Observer
	fetcher   Fetcher
	store     *cache.Cache
	memo      *cachemanager.Memory[string, string]
	sources   *cachemanager.ReadThrough[string, string]
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithEvaluator sets the evaluator fed by Load.
func WithEvaluator(evaluator Evaluator) Option {
	return func(l *Loader) {
		l.evaluator = evaluator
	}
}

// WithCache sets the persistent cache used when caching is automated.
func WithCache(c *cache.Cache) Option {
	return func(l *Loader) {
		l.store = c
	}
}

// WithFetcher replaces the scheme-dispatching default fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(l *Loader) {
		if fetcher != nil {
			l.fetcher = fetcher
		}
	}
}

// WithBus makes the loader fire its events on bus.
func WithBus(bus *events.Bus) Option {
	return func(l *Loader) {
		if bus != nil {
			l.bus = bus
		}
	}
}

// WithObserver sets the observer notified around each fetch.
func WithObserver(observer Observer) Option {
	return func(l *Loader) {
		l.observer = observer
	}
}

// WithTracer sets the tracer used for load spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loader) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// WithClock overrides time.Now for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a loader configured with opts.
func New(opts Options, options ...Option) (*Loader, error) {
	l := &Loader{
		bus:     events.New(),
		fetcher: schemeFetcher{remote: NewHTTPFetcher(), local: FileFetcher{}},
		memo:    cachemanager.NewMemory[string, string]("sources", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		tracer:  noop.NewTracerProvider().Tracer("bucket/loader"),
		now:     time.Now,
	}
	for _, option := range options {
		option(l)
	}
	if err := l.Configure(opts); err != nil {
		return nil, err
	}
	return l, nil
}

// Configure replaces the options and renews the cache bookkeeping.
// An invalid expiry fails with ErrInvalidCacheExpiry and leaves the
// previous options in place.
func (l *Loader) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	opts = opts.withDefaults()

	var ttl time.Duration
	if opts.Cache.Automate {
		ttl, _ = ParseExpiry(opts.Cache.Expires)
	}

	l.mu.Lock()
	l.opts = opts
	l.ttl = ttl
	l.sources = cachemanager.NewReadThrough[string, string](l.memo, l.fetchStored, 0, !opts.Cache.Automate)
	l.mu.Unlock()

	log.Debug(log.CatLoader, "configured",
		"base", opts.Base, "extension", opts.Extension,
		"filters", len(opts.Filters), "automate", opts.Cache.Automate)

	return l.Update()
}

// Options returns the current options.
func (l *Loader) Options() Options {
	l.mu.RLock()
	defer l.mu.RUnlock()
	opts := l.opts
	opts.Filters = slices.Clone(l.opts.Filters)
	return opts
}

// Update purges the cache once its expiry passed and renews the
// bookkeeping record. It is a no-op unless caching is automated.
func (l *Loader) Update() error {
	l.mu.RLock()
	automate, ttl, store := l.opts.Cache.Automate, l.ttl, l.store
	l.mu.RUnlock()

	if !automate || store == nil {
		return nil
	}

	now := l.now()
	record, err := store.Retrieve(BookkeepingKey)
	if err != nil {
		return err
	}
	if record == nil {
		return l.renew(store, now, ttl)
	}

	var book bookkeeping
	if err := record.Decode(&book); err != nil {
		return fmt.Errorf("decoding cache bookkeeping: %w", err)
	}
	if book.Expires <= now.UnixMilli() {
		log.Info(log.CatLoader, "source cache expired", "expired", time.UnixMilli(book.Expires).Format(time.RFC3339))
		if err := l.BurstCache(); err != nil {
			return err
		}
		return l.renew(store, now, ttl)
	}
	return nil
}

func (l *Loader) renew(store *cache.Cache, now time.Time, ttl time.Duration) error {
	return store.Store(BookkeepingKey, bookkeeping{
		Updated: now.UnixMilli(),
		Expires: now.Add(ttl).UnixMilli(),
	})
}

// Resolve returns the location id is loaded from.
func (l *Loader) Resolve(id string) string {
	l.mu.RLock()
	opts := l.opts
	l.mu.RUnlock()

	id = strings.ReplaceAll(id, `\`, "/")
	location, filtered := "", false
	for _, f := range opts.Filters {
		if len(id) >= len(f.Prefix) && strings.EqualFold(id[:len(f.Prefix)], f.Prefix) {
			location = f.Replacement + id[len(f.Prefix):]
			filtered = true
			break
		}
	}
	if !filtered {
		location = opts.Base + "/" + id
	}

	if !l.hasKnownExtension(location, opts.Extension) {
		location += opts.Extension
	}
	return location
}

func (l *Loader) hasKnownExtension(location, extension string) bool {
	ext := strings.ToLower(path.Ext(location))
	if ext == "" {
		return false
	}
	if ext == strings.ToLower(extension) {
		return true
	}
	if l.evaluator != nil {
		for _, known := range l.evaluator.Extensions() {
			if ext == strings.ToLower(known) {
				return true
			}
		}
	}
	return false
}

// Load fetches every id in order, firing "beforeload.<id>" and
// "afterload.<id>" around each fetch, then hands the sources to the
// evaluator. A failed fetch aborts before anything is evaluated.
func (l *Loader) Load(ctx context.Context, ids ...string) error {
	ctx, span := l.tracer.Start(ctx, tracing.SpanPrefixLoader+"load",
		trace.WithAttributes(attribute.StringSlice(tracing.AttrLoadIDs, ids)),
	)
	defer span.End()

	sources, err := l.fetchAll(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if l.evaluator != nil {
		for _, src := range sources {
			if err := l.evaluator.Evaluate(ctx, src.Location, src.Text); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return fmt.Errorf("evaluating %s: %w", src.Location, err)
			}
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Fetch is Load without evaluation; it returns the fetched sources.
func (l *Loader) Fetch(ctx context.Context, ids ...string) ([]Source, error) {
	return l.fetchAll(ctx, ids)
}

func (l *Loader) fetchAll(ctx context.Context, ids []string) ([]Source, error) {
	sources := make([]Source, 0, len(ids))
	for _, id := range ids {
		if err := registry.ValidateID(id); err != nil {
			return nil, fmt.Errorf("loading: %w", err)
		}
	}
	for _, id := range ids {
		l.bus.Trigger(EventBeforeLoad + id)

		location := l.Resolve(id)
		if l.observer != nil {
			l.observer.SourceLoading(id, location)
		}

		text, err := l.fetch(ctx, location)
		if err != nil {
			log.ErrorErr(log.CatLoader, "fetch failed", err,
				"id", id, "location", location, "resolve", tracing.ResolveIDFromContext(ctx))
			return nil, err
		}
		sources = append(sources, Source{ID: id, Location: location, Text: text})

		l.bus.Trigger(EventAfterLoad + id)
		if l.observer != nil {
			l.observer.SourceLoaded(id, location)
		}
	}
	return sources, nil
}

// Require fetches raw text for each file without evaluating it. Files are
// used as locations as given; relative paths are resolved against the
// origin of an http(s) base.
func (l *Loader) Require(ctx context.Context, files ...string) ([]string, error) {
	texts := make([]string, 0, len(files))
	for _, file := range files {
		text, err := l.fetch(ctx, l.locate(file))
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (l *Loader) locate(file string) string {
	if isRemote(file) || filepath.IsAbs(file) {
		return file
	}
	l.mu.RLock()
	base := l.opts.Base
	l.mu.RUnlock()

	if !isRemote(base) {
		return file
	}
	u, err := url.Parse(base)
	if err != nil {
		return file
	}
	return u.Scheme + "://" + u.Host + "/" + strings.TrimLeft(file, "/")
}

// fetch goes through the in-process cache when caching is automated.
func (l *Loader) fetch(ctx context.Context, location string) (string, error) {
	l.mu.RLock()
	sources := l.sources
	l.mu.RUnlock()

	text, hit, err := sources.Get(ctx, location)
	if hit {
		trace.SpanFromContext(ctx).AddEvent(tracing.EventCacheHit,
			trace.WithAttributes(attribute.String(tracing.AttrLoadLocation, location)))
	}
	return text, err
}

// fetchStored consults the persistent cache before the fetcher and stores
// what the fetcher returned.
func (l *Loader) fetchStored(ctx context.Context, location string) (string, error) {
	l.mu.RLock()
	automate, store := l.opts.Cache.Automate, l.store
	l.mu.RUnlock()

	if automate && store != nil {
		record, err := store.Retrieve(location)
		if err != nil {
			return "", err
		}
		if record != nil {
			log.Debug(log.CatLoader, "persistent cache hit", "location", location)
			return record.String(), nil
		}
	}

	text, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return "", err
	}
	trace.SpanFromContext(ctx).AddEvent(tracing.EventSourceFetched,
		trace.WithAttributes(attribute.String(tracing.AttrLoadLocation, location)))
	log.Debug(log.CatLoader, "fetched source", "location", location, "bytes", len(text))

	if automate && store != nil {
		if err := store.Store(location, text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// BurstCache empties the loader's cache namespace and in-process cache.
func (l *Loader) BurstCache() error {
	if err := l.memo.Flush(context.Background()); err != nil {
		return err
	}
	l.mu.RLock()
	store := l.store
	l.mu.RUnlock()
	if store == nil {
		return nil
	}
	return store.Clear()
}

// Invalidate drops a single cached location.
func (l *Loader) Invalidate(location string) error {
	if err := l.memo.Delete(context.Background(), location); err != nil {
		return err
	}
	l.mu.RLock()
	store := l.store
	l.mu.RUnlock()
	if store == nil {
		return nil
	}
	found, err := store.Delete(location)
	if err == nil && found {
		log.Debug(log.CatLoader, "invalidated cached source", "location", location)
	}
	return err
}

// CachedLocations lists the locations held by the persistent cache.
func (l *Loader) CachedLocations() ([]string, error) {
	l.mu.RLock()
	store := l.store
	l.mu.RUnlock()
	if store == nil {
		return nil, nil
	}
	keys, err := store.Keys()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(keys, func(k string) bool { return k == BookkeepingKey }), nil
}

// Cache returns the persistent cache, nil when none is attached.
func (l *Loader) Cache() *cache.Cache {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store
}

// Listen subscribes to an event on the loader bus.
func (l *Loader) Listen(event string, callback events.Callback) int {
	return l.bus.Listen(event, callback)
}

// Unlisten removes a subscription from the loader bus.
func (l *Loader) Unlisten(token int) events.UnlistenResult {
	return l.bus.Unlisten(token)
}
