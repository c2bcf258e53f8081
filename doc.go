// Package registry is a lazy, caching accessor layer over a hierarchical
// configuration tree (see package tree).
//
// A Registry owns one root Node. Nodes resolve keys from the tree on first
// access and memoize them: leaves become decoded scalar values, folders
// become child Nodes. The cache is only dropped by Reset.
//
// Data flow:
//
//	Registry.Get("api.request_limit")
//	  -> root.Lookup("api")            cache miss -> tree.FindChild -> *Node
//	  -> api.Lookup("request_limit")   cache miss -> tree.FindChild -> DecodeValue
//
// Scoped overrides:
//
//	api, _ := reg.Node("api")
//	err := api.With(registry.Overrides{{Key: "request_limit", Value: 5}}, func() error {
//		// api.request_limit reads 5 here; Reset is a no-op.
//		return nil
//	})
//	// api.request_limit reads its original value again.
//
// Set only writes the in-memory cache. Persisting values is the job of the
// importer (Registry.Import) or a tree.Writer. Imports do not reset the cache
// unless the registry is built with WithResetOnImport.
//
// Export reflects what has been cached so far, not the whole tree. Preload
// walks the full tree first when a complete snapshot is needed.
//
// Reset suppression is a counter: nested override scopes keep the registry
// protected until the outermost one returns.
package registry
