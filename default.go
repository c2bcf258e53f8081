package registry

import (
	"sync/atomic"

	"github.com/goliatone/go-registry/tree"
)

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide registry. When none was installed with
// SetDefault, an empty registry over an in-memory tree is created.
func Default() *Registry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}
	defaultRegistry.CompareAndSwap(nil, New(tree.NewMemoryTree()))
	return defaultRegistry.Load()
}

// SetDefault installs r as the process-wide registry and returns the previous
// one, which may be nil.
func SetDefault(r *Registry) *Registry {
	return defaultRegistry.Swap(r)
}

// Get resolves path on the default registry.
func Get(path string) (any, error) {
	return Default().Get(path)
}

// Set writes path on the default registry.
func Set(path string, value any) error {
	return Default().Set(path, value)
}

// IsTruthy evaluates path on the default registry.
func IsTruthy(path string) bool {
	return Default().IsTruthy(path)
}

// Reset resets the default registry.
func Reset() bool {
	return Default().Reset()
}
