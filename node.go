package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-registry/tree"
)

// Node is a lazy caching view over one folder of the tree. Keys are resolved
// from the tree on first access and served from the cache afterwards until
// the owning Registry is reset.
//
// Node is safe for concurrent use. A key is fetched from the tree at most
// once per cache lifetime.
type Node struct {
	registry *Registry
	entry    tree.Entry
	path     string

	mu    sync.Mutex
	cache map[string]any
	keys  []string
}

func newNode(r *Registry, entry tree.Entry, path string) *Node {
	return &Node{
		registry: r,
		entry:    entry,
		path:     path,
		cache:    make(map[string]any),
	}
}

// Path returns the dotted path of the node, empty for the root.
func (n *Node) Path() string {
	return n.path
}

// Entry returns the folder entry the node mirrors.
func (n *Node) Entry() tree.Entry {
	return n.entry
}

// Get returns the cached value or child node for key, resolving it from the
// tree on a miss. Missing keys fail with *KeyNotFoundError.
func (n *Node) Get(key string) (any, error) {
	return n.Lookup(context.Background(), key)
}

// Lookup is Get with a caller supplied context for the tree lookup.
func (n *Node) Lookup(ctx context.Context, key string) (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if value, ok := n.cache[key]; ok {
		return value, nil
	}

	entry, err := n.registry.tree.FindChild(ctx, n.entry.ID, key)
	if err != nil {
		if errors.Is(err, tree.ErrNotFound) {
			return nil, &KeyNotFoundError{Path: n.path, Key: key}
		}
		return nil, fmt.Errorf("registry: lookup %s: %w", joinPath(n.path, key), err)
	}
	value, err := n.materialize(entry)
	if err != nil {
		return nil, err
	}
	n.store(key, value)
	n.registry.logger.Debug().
		Str("path", joinPath(n.path, key)).
		Str("kind", entry.Kind.String()).
		Msg("cache miss resolved")
	return value, nil
}

// Resolve follows keys through child nodes and returns the value at the end
// of the chain. Passing through a leaf fails with *NotFolderError.
func (n *Node) Resolve(ctx context.Context, keys ...string) (any, error) {
	var current any = n
	for i, key := range keys {
		node, ok := current.(*Node)
		if !ok {
			return nil, &NotFolderError{Path: joinPath(n.path, strings.Join(keys[:i], "."))}
		}
		value, err := node.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		current = value
	}
	return current, nil
}

// Set writes value into the cache for key. The tree is not touched and the
// key need not exist.
func (n *Node) Set(key string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.store(key, value)
}

// IsTruthy reports the boolean coercion of Get(key). nil, false and the
// empty string are false; every other value, including 0 and child nodes, is
// true. Lookup failures, KeyNotFound included, coerce to false; failures
// other than KeyNotFound are logged.
func (n *Node) IsTruthy(key string) bool {
	ok, err := n.Truthy(key)
	if err != nil && !isKeyNotFound(err) {
		n.registry.logger.Warn().
			Err(err).
			Str("path", joinPath(n.path, key)).
			Msg("predicate lookup failed")
	}
	return ok
}

// Truthy is IsTruthy without error coercion.
func (n *Node) Truthy(key string) (bool, error) {
	value, err := n.Get(key)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

// Keys lists the accessor names known to the node in first registration
// order.
func (n *Node) Keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.keys...)
}

// Cached returns the cached value for key without consulting the tree.
func (n *Node) Cached(key string) (any, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	value, ok := n.cache[key]
	return value, ok
}

// Export renders the node and its cached descendants into nested maps. Keys
// that were never accessed are absent; call Preload first for a full view.
// A node stored under itself or a descendant is omitted where it would
// repeat.
func (n *Node) Export() map[string]any {
	return n.export(map[*Node]struct{}{})
}

func (n *Node) export(active map[*Node]struct{}) map[string]any {
	active[n] = struct{}{}
	defer delete(active, n)

	keys, values := n.snapshot()
	out := make(map[string]any, len(keys))
	for i, key := range keys {
		switch value := values[i].(type) {
		case *Node:
			if _, cycle := active[value]; cycle {
				continue
			}
			out[key] = value.export(active)
		case []any:
			out[key] = append([]any(nil), value...)
		default:
			out[key] = value
		}
	}
	return out
}

// snapshot copies the accessor names and their cached values.
func (n *Node) snapshot() ([]string, []any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := append([]string(nil), n.keys...)
	values := make([]any, len(keys))
	for i, key := range keys {
		values[i] = n.cache[key]
	}
	return keys, values
}

// Preload walks every descendant of the node through the tree and caches it.
// Keys already cached, overrides included, are kept as they are.
func (n *Node) Preload(ctx context.Context) error {
	return n.preload(ctx, map[*Node]struct{}{})
}

func (n *Node) preload(ctx context.Context, seen map[*Node]struct{}) error {
	if _, ok := seen[n]; ok {
		return nil
	}
	seen[n] = struct{}{}

	children, err := n.registry.tree.Children(ctx, n.entry.ID)
	if err != nil {
		return fmt.Errorf("registry: preload %s: %w", pathLabel(n.path), err)
	}

	n.mu.Lock()
	var folders []*Node
	for _, entry := range children {
		if existing, ok := n.cache[entry.Key]; ok {
			if child, ok := existing.(*Node); ok {
				folders = append(folders, child)
			}
			continue
		}
		value, err := n.materialize(entry)
		if err != nil {
			n.mu.Unlock()
			return err
		}
		n.store(entry.Key, value)
		if child, ok := value.(*Node); ok {
			folders = append(folders, child)
		}
	}
	n.mu.Unlock()

	for _, child := range folders {
		if err := child.preload(ctx, seen); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) materialize(entry tree.Entry) (any, error) {
	path := joinPath(n.path, entry.Key)
	if entry.IsFolder() {
		return newNode(n.registry, entry, path), nil
	}
	value, err := tree.DecodeValue(entry)
	if err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", path, err)
	}
	return value, nil
}

// store caches value and registers key. Callers hold n.mu.
func (n *Node) store(key string, value any) {
	if _, ok := n.cache[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.cache[key] = value
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
