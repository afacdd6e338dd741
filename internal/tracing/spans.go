package tracing

// Span attribute keys.
const (
	AttrComponentID   = "component.id"
	AttrResolveID     = "resolve.id"
	AttrDependencies  = "component.dependencies"
	AttrLoadIDs       = "load.ids"
	AttrLoadLocation  = "load.location"
	AttrCacheHit      = "cache.hit"
	AttrManifestKind  = "manifest.kind"
	AttrManifestCount = "manifest.components"
)

// Span name prefixes.
const (
	SpanPrefixRegistry = "registry."
	SpanPrefixLoader   = "loader."
	SpanPrefixManifest = "manifest."
)

// Span event names.
const (
	EventComponentCreated = "component.created"
	EventSourceFetched    = "source.fetched"
	EventCacheHit         = "cache.hit"
)
