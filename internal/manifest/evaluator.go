package manifest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/registry"
	"github.com/heywhy/bucket/internal/tracing"
)

// Registrar receives the components of evaluated manifests.
type Registrar interface {
	Register(id string, dependencies []string, factory registry.Factory, opts ...registry.DefinitionOption) error
}

// Evaluator decodes sources and registers their components.
type Evaluator struct {
	registrar Registrar
	catalog   *Catalog
	tracer    trace.Tracer
}

// NewEvaluator creates an evaluator. A nil catalog uses NewCatalog.
func NewEvaluator(registrar Registrar, catalog *Catalog) *Evaluator {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Evaluator{
		registrar: registrar,
		catalog:   catalog,
		tracer:    noop.NewTracerProvider().Tracer("bucket/manifest"),
	}
}

// SetTracer sets the tracer used for evaluate spans.
func (e *Evaluator) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		e.tracer = tracer
	}
}

// Catalog returns the kind catalog.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// Extensions lists the source extensions Evaluate understands.
func (e *Evaluator) Extensions() []string {
	return Extensions
}

// Evaluate decodes text and registers every component it declares. Ids are
// checked and all factories built before the first registration, so an
// invalid component leaves the registry untouched.
func (e *Evaluator) Evaluate(ctx context.Context, location, text string) error {
	_, span := e.tracer.Start(ctx, tracing.SpanPrefixManifest+"evaluate",
		trace.WithAttributes(attribute.String(tracing.AttrLoadLocation, location)),
	)
	defer span.End()

	m, err := Decode(location, text)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int(tracing.AttrManifestCount, len(m.Components)))

	factories := make([]registry.Factory, len(m.Components))
	for i, comp := range m.Components {
		if err := validateIDs(comp); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%s: %w", location, err)
		}
		factory, err := e.catalog.Build(comp)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("%s: %w", location, err)
		}
		factories[i] = factory
	}

	for i, comp := range m.Components {
		var opts []registry.DefinitionOption
		if comp.Name != "" {
			opts = append(opts, registry.WithName(comp.Name))
		}
		if err := e.registrar.Register(comp.ID, comp.Dependencies, factories[i], opts...); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%s: %w", location, err)
		}
		log.Debug(log.CatManifest, "registered manifest component",
			"id", comp.ID, "kind", comp.EffectiveKind(), "location", location)
	}
	return nil
}

func validateIDs(comp Component) error {
	if err := registry.ValidateID(comp.ID); err != nil {
		return err
	}
	for _, dep := range comp.Dependencies {
		if err := registry.ValidateID(dep); err != nil {
			return fmt.Errorf("dependency of %s: %w", comp.ID, err)
		}
	}
	return nil
}
