package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-registry/importer"
	"github.com/goliatone/go-registry/pkg/activity"
	"github.com/goliatone/go-registry/tree"
)

// State is the lifecycle state of the registry cache.
type State int

const (
	// StateUninitialized means no root node exists; the next access builds one.
	StateUninitialized State = iota
	// StateWarm means a root node exists and serves cached keys.
	StateWarm
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWarm:
		return "warm"
	default:
		return "unknown"
	}
}

// ImportOptions controls Import and ImportLayers.
type ImportOptions = importer.Options

// Registry owns the root Node over a tree and its reset lifecycle.
type Registry struct {
	cfg      config
	tree     tree.Tree
	importer *importer.Importer
	emitter  *activity.Emitter
	logger   zerolog.Logger

	evalOnce  sync.Once
	evaluator Evaluator

	mu       sync.Mutex
	root     *Node
	suppress int
}

// New constructs a Registry reading from t. A nil tree is replaced by an
// empty in-memory tree.
func New(t tree.Tree, opts ...Option) *Registry {
	if t == nil {
		t = tree.NewMemoryTree()
	}
	cfg := applyOptions(opts)
	return &Registry{
		cfg:      cfg,
		tree:     t,
		importer: importer.New(t, cfg.importerOptions()...),
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activity),
		logger:   cfg.logger.With().Str("component", "registry").Logger(),
	}
}

// Tree returns the backing tree.
func (r *Registry) Tree() tree.Tree {
	return r.tree
}

// Root returns the root node, building it on first access.
func (r *Registry) Root(ctx context.Context) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root != nil {
		return r.root, nil
	}
	entry, err := r.tree.Root(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: load root: %w", err)
	}
	r.root = newNode(r, entry, "")
	r.logger.Debug().Msg("root node initialized")
	return r.root, nil
}

// Get resolves a dotted path from the root.
func (r *Registry) Get(path string) (any, error) {
	return r.GetContext(context.Background(), path)
}

// GetContext is Get with a caller supplied context.
func (r *Registry) GetContext(ctx context.Context, path string) (any, error) {
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	root, err := r.Root(ctx)
	if err != nil {
		return nil, err
	}
	return root.Resolve(ctx, keys...)
}

// Node returns the folder node at path. The empty path is the root.
func (r *Registry) Node(path string) (*Node, error) {
	return r.NodeContext(context.Background(), path)
}

// NodeContext is Node with a caller supplied context.
func (r *Registry) NodeContext(ctx context.Context, path string) (*Node, error) {
	root, err := r.Root(ctx)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return root, nil
	}
	keys, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	value, err := root.Resolve(ctx, keys...)
	if err != nil {
		return nil, err
	}
	node, ok := value.(*Node)
	if !ok {
		return nil, &NotFolderError{Path: path}
	}
	return node, nil
}

// Set writes value into the cache at path. Every segment but the last must
// resolve to a folder; the last one need not exist.
func (r *Registry) Set(path string, value any) error {
	keys, err := splitPath(path)
	if err != nil {
		return err
	}
	parent, err := r.Node(strings.Join(keys[:len(keys)-1], "."))
	if err != nil {
		return err
	}
	key := keys[len(keys)-1]
	previous, _ := parent.Cached(key)
	if _, isNode := previous.(*Node); isNode {
		previous = nil
	}
	parent.Set(key, value)
	r.emit(context.Background(), activity.BuildValueSetEvent(activity.RegistryEventInput{
		Path:     path,
		OldValue: previous,
		NewValue: value,
	}))
	return nil
}

// IsTruthy reports the boolean coercion of the value at path. Failures
// coerce to false, see Node.IsTruthy.
func (r *Registry) IsTruthy(path string) bool {
	ok, err := r.Truthy(path)
	if err != nil && !isKeyNotFound(err) {
		r.logger.Warn().Err(err).Str("path", path).Msg("predicate lookup failed")
	}
	return ok
}

// Truthy is IsTruthy without error coercion.
func (r *Registry) Truthy(path string) (bool, error) {
	value, err := r.Get(path)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

// Reset drops the root node so the next access re-resolves from the tree. It
// is a no-op while an override scope is active and reports whether the cache
// was dropped.
func (r *Registry) Reset() bool {
	r.mu.Lock()
	suppressed := r.suppress > 0
	if !suppressed {
		r.root = nil
	}
	r.mu.Unlock()

	if suppressed {
		r.logger.Debug().Msg("reset suppressed")
	} else {
		r.logger.Debug().Msg("cache reset")
	}
	r.emit(context.Background(), activity.BuildResetEvent(activity.RegistryEventInput{
		Suppressed: suppressed,
	}))
	return !suppressed
}

// SuppressReset makes Reset a no-op until a matching AllowReset. Calls nest.
func (r *Registry) SuppressReset() {
	r.mu.Lock()
	r.suppress++
	r.mu.Unlock()
}

// AllowReset releases one SuppressReset. Extra calls are ignored.
func (r *Registry) AllowReset() {
	r.mu.Lock()
	if r.suppress > 0 {
		r.suppress--
	}
	r.mu.Unlock()
}

// ResetSuppressed reports whether at least one suppression is active.
func (r *Registry) ResetSuppressed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppress > 0
}

// State reports whether a root node is currently cached.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root == nil {
		return StateUninitialized
	}
	return StateWarm
}

// Import loads source into the tree. The cache is left untouched unless the
// registry was built with WithResetOnImport, so cached keys may be stale
// until Reset.
func (r *Registry) Import(ctx context.Context, source string, opts ImportOptions) error {
	return r.ImportLayers(ctx, []string{source}, opts)
}

// ImportLayers loads several sources ordered strongest first.
func (r *Registry) ImportLayers(ctx context.Context, sources []string, opts ImportOptions) error {
	if err := r.importer.ImportLayers(ctx, sources, opts); err != nil {
		return err
	}
	r.emit(ctx, activity.BuildImportedEvent(activity.RegistryEventInput{
		Sources: sources,
		Purge:   opts.Purge,
	}))
	if r.cfg.resetOnImport {
		r.Reset()
	}
	return nil
}

// Export renders the cached part of the tree, see Node.Export.
func (r *Registry) Export(ctx context.Context) (map[string]any, error) {
	root, err := r.Root(ctx)
	if err != nil {
		return nil, err
	}
	return root.Export(), nil
}

// Preload caches the whole tree.
func (r *Registry) Preload(ctx context.Context) error {
	root, err := r.Root(ctx)
	if err != nil {
		return err
	}
	return root.Preload(ctx)
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	keys := strings.Split(path, ".")
	for _, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return keys, nil
}
