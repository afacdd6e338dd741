package tracing

import "context"

type contextKey string

// resolveIDKey is the context key for the resolve correlation id.
const resolveIDKey contextKey = "resolve_id"

// ResolveIDFromContext extracts the resolve correlation id from the context.
// Returns an empty string if none is present.
func ResolveIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(resolveIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithResolveID returns a context carrying id. Nested resolves and
// the loads they trigger share it, so their log lines and spans correlate.
// An empty id returns ctx unchanged.
func ContextWithResolveID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, resolveIDKey, id)
}
