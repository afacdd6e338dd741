// Package registry implements the runtime component registry.
//
// A component is registered under a path-like id together with a Factory and
// the ordered ids of the components it depends on. Resolve turns an id into a
// fully constructed instance: every transitive dependency is built first and
// handed to the dependent's factory positionally.
//
// # Identifiers
//
// Ids use "/" or "\" as segment delimiter; both spell the same component.
// NormalizeID converts to the "/" form, which is also the form used in event
// names ("add.App/Welcome", "create.App/Welcome").
//
// # Resolution
//
// A definition without dependencies is constructed directly. Otherwise a
// dependency tree is built for the request (fetching unknown ids through the
// attached Loader), flattened pre-order, and instantiated from the last node
// to the first. A node's arguments come from its own children, so children
// are always created before their parent. Nothing is cached between Resolve
// calls and a component shared by two ancestors is built once per occurrence.
//
// # Arity
//
// The argument slice handed to Factory.New always has exactly Arity()
// entries: surplus dependencies are dropped, missing ones are nil. A
// definition that declares no dependencies gets no arguments at all.
//
// # Events
//
// Each Registry owns an events.Bus. Register fires "add.<id>" with the
// factory; every instantiation fires "create.<id>" with the instance.
package registry
