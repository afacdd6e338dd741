package registry

import "errors"

// Registry errors
var (
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrNotRegistered       = errors.New("component not registered")
	ErrCircularDependency  = errors.New("circular dependency")
	ErrFactoryFailed       = errors.New("factory failed")
	ErrArgumentType        = errors.New("dependency has unexpected type")
)
