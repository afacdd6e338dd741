// Package manifest decodes component manifests and registers the components
// they declare.
//
// A manifest lists components by id, their dependencies and a kind. YAML
// (and therefore JSON) manifests look like
//
//	components:
//	  - id: App
//	    dependencies: [Bucket/Cache]
//	    kind: object
//	    properties:
//	      title: todo
//
// and HCL manifests like
//
//	component "App" {
//	  dependencies = ["Bucket/Cache"]
//	  kind         = "object"
//	  properties   = { title = "todo" }
//	}
//
// The kind selects a Builder from a Catalog; the builder turns the declared
// component into a registry.Factory. Arity defaults to the number of
// dependencies.
package manifest
