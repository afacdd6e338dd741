package bucket

import (
	"github.com/heywhy/bucket/internal/loader"
	"github.com/heywhy/bucket/internal/manifest"
	"github.com/heywhy/bucket/internal/registry"
)

// Errors returned by Bucket operations. Match them with errors.Is.
var (
	ErrInvalidRegistration = registry.ErrInvalidRegistration
	ErrNotRegistered       = registry.ErrNotRegistered
	ErrCircularDependency  = registry.ErrCircularDependency
	ErrFactoryFailed       = registry.ErrFactoryFailed
	ErrFetchFailed         = loader.ErrFetchFailed
	ErrInvalidCacheExpiry  = loader.ErrInvalidCacheExpiry
	ErrInvalidManifest     = manifest.ErrInvalidManifest
	ErrUnknownKind         = manifest.ErrUnknownKind
)

// FetchError carries the location and HTTP status of a failed fetch.
type FetchError = loader.FetchError
