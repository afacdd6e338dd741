package registry

import "context"

// Loader fetches component sources for ids the registry does not know yet.
// Implementations register the loaded components as a side effect.
type Loader interface {
	Load(ctx context.Context, ids ...string) error
}

// Observer is told about registrations and instantiations, after the
// matching bus events fired.
type Observer interface {
	ComponentRegistered(id string)
	ComponentCreated(id string, instance any)
}

// Provider is the read/resolve surface consumers depend on.
type Provider interface {
	Resolve(ctx context.Context, id string) (any, error)
	Lookup(id string) (*Definition, bool)
	Has(id string) bool
	IDs() []string
}

// Compile-time check that Registry implements Provider.
var _ Provider = (*Registry)(nil)
