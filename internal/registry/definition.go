package registry

// Definition is the stored registration record of one component.
type Definition struct {
	ID           string
	Name         string
	Factory      Factory
	Dependencies []string
}

// DefinitionOption customizes a Definition at registration time.
type DefinitionOption func(*Definition)

// WithName sets a descriptive name for the component.
func WithName(name string) DefinitionOption {
	return func(d *Definition) {
		d.Name = name
	}
}

// String returns the descriptive name, "<id>::component" when none was set.
func (d *Definition) String() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID + "::component"
}

// HasDependencies reports whether the definition declares any dependency.
func (d *Definition) HasDependencies() bool {
	return len(d.Dependencies) > 0
}
