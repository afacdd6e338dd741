package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/heywhy/bucket/internal/events"
	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/tracing"
)

// Event name prefixes fired on the registry bus.
const (
	EventAdd    = "add."
	EventCreate = "create."
)

// Registry stores component definitions and resolves them into instances.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition

	bus      *events.Bus
	loader   Loader
	tracer   trace.Tracer
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithBus makes the registry fire its events on bus.
func WithBus(bus *events.Bus) Option {
	return func(r *Registry) {
		if bus != nil {
			r.bus = bus
		}
	}
}

// WithLoader attaches the loader used for unknown ids.
func WithLoader(loader Loader) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithTracer sets the tracer used for resolve spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithObserver sets an observer notified after every add/create event.
func WithObserver(observer Observer) Option {
	return func(r *Registry) {
		r.observer = observer
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		definitions: make(map[string]*Definition),
		bus:         events.New(),
		tracer:      noop.NewTracerProvider().Tracer("bucket/registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLoader attaches (or with nil, detaches) the loader used for unknown ids.
func (r *Registry) SetLoader(loader Loader) {
	r.mu.Lock()
	r.loader = loader
	r.mu.Unlock()
}

// Register stores factory under id, overwriting any previous definition,
// and fires "add.<id>" with the factory.
func (r *Registry) Register(id string, dependencies []string, factory Factory, opts ...DefinitionOption) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("%w: %s: nil factory", ErrInvalidRegistration, id)
	}

	deps := make([]string, 0, len(dependencies))
	for _, dep := range dependencies {
		if err := ValidateID(dep); err != nil {
			return fmt.Errorf("dependency of %s: %w", id, err)
		}
		deps = append(deps, NormalizeID(dep))
	}

	def := &Definition{
		ID:           NormalizeID(id),
		Factory:      factory,
		Dependencies: deps,
	}
	for _, opt := range opts {
		opt(def)
	}

	r.mu.Lock()
	_, replaced := r.definitions[def.ID]
	r.definitions[def.ID] = def
	observer := r.observer
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "registered component",
		"id", def.ID, "dependencies", len(deps), "replaced", replaced)

	r.bus.Trigger(EventAdd+def.ID, factory)
	if observer != nil {
		observer.ComponentRegistered(def.ID)
	}
	return nil
}

// Lookup returns the definition registered under id.
func (r *Registry) Lookup(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[NormalizeID(id)]
	return def, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}

// Listen subscribes to an event on the registry bus.
func (r *Registry) Listen(event string, callback events.Callback) int {
	return r.bus.Listen(event, callback)
}

// Unlisten removes a subscription from the registry bus.
func (r *Registry) Unlisten(token int) events.UnlistenResult {
	return r.bus.Unlisten(token)
}

// Bus returns the registry's event bus.
func (r *Registry) Bus() *events.Bus {
	return r.bus
}

// Resolve constructs the component registered under id together with all of
// its transitive dependencies. Nothing is cached between calls.
func (r *Registry) Resolve(ctx context.Context, id string) (any, error) {
	id = NormalizeID(id)
	resolveID := tracing.ResolveIDFromContext(ctx)
	if resolveID == "" {
		resolveID = uuid.NewString()
		ctx = tracing.ContextWithResolveID(ctx, resolveID)
	}

	ctx, span := r.tracer.Start(ctx, tracing.SpanPrefixRegistry+"resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(tracing.AttrComponentID, id),
			attribute.String(tracing.AttrResolveID, resolveID),
		),
	)
	defer span.End()

	instance, err := r.resolve(ctx, id, resolveID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatRegistry, "resolve failed", err, "id", id, "resolve", resolveID)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return instance, nil
}

func (r *Registry) resolve(ctx context.Context, id, resolveID string) (any, error) {
	def, err := r.definition(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Debug(log.CatRegistry, "resolving component",
		"id", id, "resolve", resolveID, "dependencies", len(def.Dependencies))

	if !def.HasDependencies() {
		return r.construct(ctx, def, nil)
	}

	root, err := r.Tree(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.instantiateTree(ctx, root)
}

// definition returns the definition for a normalized id, asking the loader
// when it is not registered yet.
func (r *Registry) definition(ctx context.Context, id string) (*Definition, error) {
	if def, ok := r.Lookup(id); ok {
		return def, nil
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := r.load(ctx, id); err != nil {
		return nil, err
	}
	if def, ok := r.Lookup(id); ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
}

func (r *Registry) load(ctx context.Context, ids ...string) error {
	r.mu.RLock()
	loader := r.loader
	r.mu.RUnlock()

	if loader == nil || len(ids) == 0 {
		return nil
	}
	log.Debug(log.CatRegistry, "loading unknown components", "ids", ids)
	if err := loader.Load(ctx, ids...); err != nil {
		return fmt.Errorf("loading %v: %w", ids, err)
	}
	return nil
}

// construct invokes def's factory with args and fires "create.<id>".
func (r *Registry) construct(ctx context.Context, def *Definition, args []any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := def.Factory.New(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFactoryFailed, def.ID, err)
	}

	trace.SpanFromContext(ctx).AddEvent(tracing.EventComponentCreated,
		trace.WithAttributes(attribute.String(tracing.AttrComponentID, def.ID)),
	)

	r.bus.Trigger(EventCreate+def.ID, instance)

	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()
	if observer != nil {
		observer.ComponentCreated(def.ID, instance)
	}
	return instance, nil
}
