package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a custom callable exposed to rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions. Lookups ignore case; rules see
// each function under the name it was registered with.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]namedFunction
}

type namedFunction struct {
	name string
	fn   Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]namedFunction)}
}

// Register stores fn under name. Names are unique ignoring case.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if name == "" {
		return fmt.Errorf("registry: function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("registry: function %q is nil", name)
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]namedFunction)
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("registry: function %q already registered", name)
	}
	r.functions[key] = namedFunction{name: name, fn: fn}
	return nil
}

// Clone returns a shallow copy so later registrations do not leak into
// evaluators built from the original.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]namedFunction, len(r.functions))}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("registry: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns the registered names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry exposes the functions of fr to the default evaluator.
func WithFunctionRegistry(fr *FunctionRegistry) Option {
	return func(cfg *config) {
		if fr == nil {
			return
		}
		cfg.functions = fr.Clone()
	}
}

// WithCustomFunction registers a single function for the default evaluator.
// Duplicate names are ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
