// Package bucket is the public entry point to the component registry.
//
// A Bucket combines three pieces: a Registry that owns component
// definitions and resolves them with their dependencies, a Loader that
// fetches component manifests for ids nobody registered yet, and a
// general-purpose event bus. Subscriptions are routed by channel prefix:
//
//	b.Listen("namespace.create.App/Welcome", cb) // registry events, token "namespace<n>"
//	b.Listen("load.beforeload.App/Welcome", cb)  // loader events, token "load<n>"
//	b.Listen("user.saved", cb)                   // general bus, token "<n>"
//
// Minimal use:
//
//	b, err := bucket.New()
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	_ = b.Register(bucket.ID("Leaf"), bucket.Func0(func() string { return "leaf" }))
//	_ = b.Register(bucket.ID("Root", "Leaf"), bucket.Func1(func(leaf string) []string {
//		return []string{"root", leaf}
//	}))
//	root, err := b.Resolve(ctx, "Root")
package bucket
