package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/mitchellh/copystructure"

	"github.com/heywhy/bucket/internal/registry"
)

// Built-in kinds.
const (
	KindObject   = "object"
	KindList     = "list"
	KindValue    = "value"
	KindTemplate = "template"
)

// Builder turns a declared component into a factory.
type Builder func(c Component) (registry.Factory, error)

// Catalog maps kind names to builders.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewCatalog returns a catalog holding the built-in kinds.
func NewCatalog() *Catalog {
	c := &Catalog{builders: make(map[string]Builder)}
	c.Register(KindObject, buildObject)
	c.Register(KindList, buildList)
	c.Register(KindValue, buildValue)
	c.Register(KindTemplate, buildTemplate)
	return c
}

// Register adds or replaces the builder for kind.
func (c *Catalog) Register(kind string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[kind] = builder
}

// Kinds returns the registered kind names, sorted.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]string, 0, len(c.builders))
	for kind := range c.builders {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Build returns the factory for comp.
func (c *Catalog) Build(comp Component) (registry.Factory, error) {
	kind := comp.EffectiveKind()

	c.mu.RLock()
	builder, ok := c.builders[kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (component %s)", ErrUnknownKind, kind, comp.ID)
	}
	return builder(comp)
}

// buildObject yields a map of the properties plus every received dependency
// under its id. Each call gets its own copy of the properties.
func buildObject(comp Component) (registry.Factory, error) {
	deps := comp.Dependencies
	props := comp.Properties
	return registry.Func(comp.EffectiveArity(), func(args []any) (any, error) {
		obj := make(map[string]any, len(props)+len(args))
		for key, value := range props {
			dup, err := clone(value)
			if err != nil {
				return nil, fmt.Errorf("copying property %s: %w", key, err)
			}
			obj[key] = dup
		}
		for i, arg := range args {
			if i < len(deps) {
				obj[deps[i]] = arg
			}
		}
		return obj, nil
	}), nil
}

func buildList(comp Component) (registry.Factory, error) {
	return registry.Func(comp.EffectiveArity(), func(args []any) (any, error) {
		list := make([]any, len(args))
		copy(list, args)
		return list, nil
	}), nil
}

// buildValue yields a fresh copy of the declared value on every call.
func buildValue(comp Component) (registry.Factory, error) {
	value := comp.Value
	return registry.Func(0, func([]any) (any, error) {
		return clone(value)
	}), nil
}

// clone deep-copies a decoded manifest value so instances never share maps
// or slices.
func clone(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return copystructure.Copy(v)
}

// TemplateData is what a template component renders with.
type TemplateData struct {
	ID         string
	Deps       []any
	Properties map[string]any
}

func buildTemplate(comp Component) (registry.Factory, error) {
	text, ok := comp.Value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: template component %s needs a string value", ErrInvalidManifest, comp.ID)
	}
	tmpl, err := template.New(comp.ID).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: component %s: %w", ErrInvalidManifest, comp.ID, err)
	}

	id, props := comp.ID, comp.Properties
	return registry.Func(comp.EffectiveArity(), func(args []any) (any, error) {
		var buf bytes.Buffer
		dup, err := clone(props)
		if err != nil {
			return nil, err
		}
		properties, _ := dup.(map[string]any)
		if err := tmpl.Execute(&buf, TemplateData{ID: id, Deps: args, Properties: properties}); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}), nil
}
