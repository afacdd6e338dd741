package registry

import "fmt"

// Factory constructs a component instance from its resolved dependencies.
//
// Arity is the number of positional arguments New expects; the registry
// always passes a slice of exactly that length (or nil when the definition
// declares no dependencies).
type Factory interface {
	Arity() int
	New(args []any) (any, error)
}

type funcFactory struct {
	arity int
	fn    func(args []any) (any, error)
}

func (f *funcFactory) Arity() int { return f.arity }

func (f *funcFactory) New(args []any) (any, error) { return f.fn(args) }

// Func adapts fn into a Factory declaring arity parameters.
// It returns nil when fn is nil, which Register rejects.
func Func(arity int, fn func(args []any) (any, error)) Factory {
	if fn == nil {
		return nil
	}
	if arity < 0 {
		arity = 0
	}
	return &funcFactory{arity: arity, fn: fn}
}

// Func0 adapts a parameterless constructor.
func Func0[T any](fn func() T) Factory {
	if fn == nil {
		return nil
	}
	return &funcFactory{arity: 0, fn: func([]any) (any, error) {
		return fn(), nil
	}}
}

// Func1 adapts a constructor taking one dependency.
func Func1[A, T any](fn func(A) T) Factory {
	if fn == nil {
		return nil
	}
	return &funcFactory{arity: 1, fn: func(args []any) (any, error) {
		a, err := argument[A](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(a), nil
	}}
}

// Func2 adapts a constructor taking two dependencies.
func Func2[A, B, T any](fn func(A, B) T) Factory {
	if fn == nil {
		return nil
	}
	return &funcFactory{arity: 2, fn: func(args []any) (any, error) {
		a, err := argument[A](args, 0)
		if err != nil {
			return nil, err
		}
		b, err := argument[B](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b), nil
	}}
}

// argument returns args[i] as T. Missing or nil positions yield the zero T.
func argument[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) || args[i] == nil {
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: argument %d is %T, want %T", ErrArgumentType, i, args[i], zero)
	}
	return v, nil
}

// arguments shapes resolved dependency instances into the argument list for
// def's factory.
func arguments(def *Definition, resolved []any) []any {
	arity := def.Factory.Arity()
	if len(def.Dependencies) == 0 || arity <= 0 {
		return nil
	}
	args := make([]any, arity)
	copy(args, resolved)
	return args
}

// Value returns a Factory that always yields v.
func Value(v any) Factory {
	return &funcFactory{arity: 0, fn: func([]any) (any, error) {
		return v, nil
	}}
}
