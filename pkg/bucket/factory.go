package bucket

import "github.com/heywhy/bucket/internal/registry"

// Factory builds a component instance from its resolved dependencies.
type Factory = registry.Factory

// Node is one component in a resolved dependency tree.
type Node = registry.Node

// Definition is a registered component.
type Definition = registry.Definition

// DefinitionOption customizes a Definition at registration.
type DefinitionOption = registry.DefinitionOption

// IDSpec names a component and the ordered ids of its dependencies.
type IDSpec struct {
	ID           string
	Dependencies []string
}

// ID builds an IDSpec. Dependencies are handed to the factory positionally.
func ID(id string, dependencies ...string) IDSpec {
	return IDSpec{ID: id, Dependencies: dependencies}
}

// Func wraps an untyped constructor taking arity arguments.
func Func(arity int, fn func(args []any) (any, error)) Factory {
	return registry.Func(arity, fn)
}

// Func0 wraps a constructor without dependencies.
func Func0[T any](fn func() T) Factory {
	return registry.Func0(fn)
}

// Func1 wraps a constructor taking one dependency.
func Func1[A, T any](fn func(A) T) Factory {
	return registry.Func1(fn)
}

// Func2 wraps a constructor taking two dependencies.
func Func2[A, B, T any](fn func(A, B) T) Factory {
	return registry.Func2(fn)
}

// Value always returns v.
func Value(v any) Factory {
	return registry.Value(v)
}

// WithName sets a display name for the component.
func WithName(name string) DefinitionOption {
	return registry.WithName(name)
}
