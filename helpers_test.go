package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-registry/tree"
)

// countingTree records FindChild calls per key.
type countingTree struct {
	tree.Tree

	mu       sync.Mutex
	finds    map[string]int
	failWith map[string]error
}

func newCountingTree(base tree.Tree) *countingTree {
	return &countingTree{
		Tree:     base,
		finds:    make(map[string]int),
		failWith: make(map[string]error),
	}
}

func (c *countingTree) FindChild(ctx context.Context, parentID, key string) (tree.Entry, error) {
	c.mu.Lock()
	c.finds[key]++
	err := c.failWith[key]
	c.mu.Unlock()
	if err != nil {
		return tree.Entry{}, err
	}
	return c.Tree.FindChild(ctx, parentID, key)
}

func (c *countingTree) lookups(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finds[key]
}

func (c *countingTree) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, count := range c.finds {
		n += count
	}
	return n
}

// seedTree builds:
//
//	api/enabled=true
//	api/request_limit=1
//	api/hosts=["a","b"]
//	features/beta=false
//	features/label=""
//	features/retries=0
//	features/ui/theme="dark"
//	name="billing"
func seedTree(t *testing.T) *tree.MemoryTree {
	t.Helper()
	ctx := context.Background()
	mem := tree.NewMemoryTree()

	api := mustFolder(t, mem, tree.RootID, "api")
	mustValue(t, mem, api.ID, "enabled", true)
	mustValue(t, mem, api.ID, "request_limit", 1)
	mustValue(t, mem, api.ID, "hosts", []any{"a", "b"})

	features := mustFolder(t, mem, tree.RootID, "features")
	mustValue(t, mem, features.ID, "beta", false)
	mustValue(t, mem, features.ID, "label", "")
	mustValue(t, mem, features.ID, "retries", 0)
	ui := mustFolder(t, mem, features.ID, "ui")
	mustValue(t, mem, ui.ID, "theme", "dark")

	if _, err := mem.PutValue(ctx, tree.RootID, "name", "billing"); err != nil {
		t.Fatalf("seed name: %v", err)
	}
	return mem
}

func mustFolder(t *testing.T, w tree.Writer, parentID, key string) tree.Entry {
	t.Helper()
	entry, err := w.EnsureFolder(context.Background(), parentID, key)
	if err != nil {
		t.Fatalf("ensure folder %q: %v", key, err)
	}
	return entry
}

func mustValue(t *testing.T, w tree.Writer, parentID, key string, value any) {
	t.Helper()
	if _, err := w.PutValue(context.Background(), parentID, key, value); err != nil {
		t.Fatalf("put value %q: %v", key, err)
	}
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *countingTree) {
	t.Helper()
	counting := newCountingTree(seedTree(t))
	return New(counting, opts...), counting
}

func mustGet(t *testing.T, r *Registry, path string) any {
	t.Helper()
	value, err := r.Get(path)
	if err != nil {
		t.Fatalf("get %q: %v", path, err)
	}
	return value
}

func mustNode(t *testing.T, r *Registry, path string) *Node {
	t.Helper()
	node, err := r.Node(path)
	if err != nil {
		t.Fatalf("node %q: %v", path, err)
	}
	return node
}
