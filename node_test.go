package registry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestGetResolvesOnceThenServesCache(t *testing.T) {
	reg, counting := newTestRegistry(t)

	for i := 0; i < 3; i++ {
		if got := mustGet(t, reg, "api.request_limit"); got != 1 {
			t.Fatalf("iteration %d: expected 1, got %#v", i, got)
		}
	}
	if n := counting.lookups("api"); n != 1 {
		t.Fatalf("expected one lookup for api, got %d", n)
	}
	if n := counting.lookups("request_limit"); n != 1 {
		t.Fatalf("expected one lookup for request_limit, got %d", n)
	}
}

func TestGetReturnsNodeForFolder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	value := mustGet(t, reg, "features.ui")
	node, ok := value.(*Node)
	if !ok {
		t.Fatalf("expected *Node, got %T", value)
	}
	if node.Path() != "features.ui" {
		t.Fatalf("expected path features.ui, got %q", node.Path())
	}
	if !node.Entry().IsFolder() {
		t.Fatalf("expected folder entry")
	}
	again := mustGet(t, reg, "features.ui")
	if again != value {
		t.Fatalf("expected cached node identity to be stable")
	}
}

func TestGetMissingKey(t *testing.T) {
	reg, counting := newTestRegistry(t)
	_, err := reg.Get("api.missing")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) || notFound.Path != "api" || notFound.Key != "missing" {
		t.Fatalf("unexpected error detail %#v", notFound)
	}

	// Misses are not cached.
	_, _ = reg.Get("api.missing")
	if n := counting.lookups("missing"); n != 2 {
		t.Fatalf("expected missing key looked up twice, got %d", n)
	}
}

func TestGetThroughLeafFails(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Get("api.enabled.deeper")
	if !errors.Is(err, ErrNotFolder) {
		t.Fatalf("expected ErrNotFolder, got %v", err)
	}
	var notFolder *NotFolderError
	if !errors.As(err, &notFolder) || notFolder.Path != "api.enabled" {
		t.Fatalf("unexpected error detail %#v", notFolder)
	}
}

func TestGetInvalidPath(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for _, path := range []string{"", "api.", ".api", "api..enabled"} {
		if _, err := reg.Get(path); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", path, err)
		}
	}
}

func TestTreeFailurePropagates(t *testing.T) {
	reg, counting := newTestRegistry(t)
	boom := errors.New("disk gone")
	counting.failWith["api"] = boom

	_, err := reg.Get("api.enabled")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped tree error, got %v", err)
	}
	if errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("tree failure must not match ErrKeyNotFound")
	}
}

func TestSetWritesCacheWithoutTree(t *testing.T) {
	reg, counting := newTestRegistry(t)
	api := mustNode(t, reg, "api")
	before := counting.total()

	api.Set("timeout", "5s")
	api.Set("request_limit", 50)

	if got, err := api.Get("timeout"); err != nil || got != "5s" {
		t.Fatalf("expected 5s, got %v err=%v", got, err)
	}
	if got, err := api.Get("request_limit"); err != nil || got != 50 {
		t.Fatalf("expected 50, got %v err=%v", got, err)
	}
	if after := counting.total(); after != before {
		t.Fatalf("expected no tree lookups, got %d", after-before)
	}
}

func TestRegistrySetResolvesParentOnly(t *testing.T) {
	reg, counting := newTestRegistry(t)
	if err := reg.Set("api.request_limit", 9); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mustGet(t, reg, "api.request_limit"); got != 9 {
		t.Fatalf("expected 9, got %v", got)
	}
	if n := counting.lookups("request_limit"); n != 0 {
		t.Fatalf("expected request_limit never looked up, got %d", n)
	}
	if err := reg.Set("top", "level"); err != nil {
		t.Fatalf("set top: %v", err)
	}
	if got := mustGet(t, reg, "top"); got != "level" {
		t.Fatalf("expected level, got %v", got)
	}
	if err := reg.Set("nope.key", 1); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected missing parent to fail, got %v", err)
	}
	if err := reg.Set("api.enabled.key", 1); !errors.Is(err, ErrNotFolder) {
		t.Fatalf("expected leaf parent to fail, got %v", err)
	}
}

func TestIsTruthyPolicy(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_ = reg.Set("features.nothing", nil)

	cases := []struct {
		path   string
		expect bool
	}{
		{"api.enabled", true},
		{"api.request_limit", true},
		{"api.hosts", true},
		{"api", true},
		{"features.beta", false},
		{"features.label", false},
		{"features.retries", true},
		{"features.nothing", false},
		{"features.missing", false},
		{"missing.deeper", false},
	}
	for _, tc := range cases {
		if got := reg.IsTruthy(tc.path); got != tc.expect {
			t.Fatalf("IsTruthy(%q): expected %v, got %v", tc.path, tc.expect, got)
		}
	}
}

func TestTruthySurfacesErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.Truthy("features.missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	ok, err := mustNode(t, reg, "features").Truthy("ui")
	if err != nil || !ok {
		t.Fatalf("expected folder to be truthy, got %v err=%v", ok, err)
	}
}

func TestNodeIsTruthySwallowsTreeFailure(t *testing.T) {
	reg, counting := newTestRegistry(t)
	api := mustNode(t, reg, "api")
	counting.failWith["enabled"] = errors.New("flaky")
	if api.IsTruthy("enabled") {
		t.Fatalf("expected failing lookup to coerce to false")
	}
	if _, err := api.Truthy("enabled"); err == nil {
		t.Fatalf("expected Truthy to surface the failure")
	}
}

func TestExportIsLazyAndKeysKeepOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustGet(t, reg, "features.beta")
	mustGet(t, reg, "api.request_limit")
	mustGet(t, reg, "api.enabled")

	exported, err := reg.Export(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	expected := map[string]any{
		"features": map[string]any{"beta": false},
		"api":      map[string]any{"request_limit": 1, "enabled": true},
	}
	if !reflect.DeepEqual(expected, exported) {
		t.Fatalf("export mismatch:\nwant: %#v\n got: %#v", expected, exported)
	}

	root, _ := reg.Root(context.Background())
	if got := root.Keys(); !reflect.DeepEqual(got, []string{"features", "api"}) {
		t.Fatalf("unexpected root keys %v", got)
	}
	if got := mustNode(t, reg, "api").Keys(); !reflect.DeepEqual(got, []string{"request_limit", "enabled"}) {
		t.Fatalf("unexpected api keys %v", got)
	}
}

func TestExportCopiesLists(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustGet(t, reg, "api.hosts")
	exported, _ := reg.Export(context.Background())
	hosts := exported["api"].(map[string]any)["hosts"].([]any)
	hosts[0] = "changed"
	if got := mustGet(t, reg, "api.hosts").([]any); got[0] != "a" {
		t.Fatalf("expected cached list untouched, got %v", got)
	}
}

func TestPreloadCachesEverythingAndKeepsOverrides(t *testing.T) {
	reg, counting := newTestRegistry(t)
	if err := reg.Set("api.request_limit", 99); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := reg.Preload(context.Background()); err != nil {
		t.Fatalf("preload: %v", err)
	}
	exported, _ := reg.Export(context.Background())
	expected := map[string]any{
		"api": map[string]any{"enabled": true, "request_limit": 99, "hosts": []any{"a", "b"}},
		"features": map[string]any{
			"beta":    false,
			"label":   "",
			"retries": 0,
			"ui":      map[string]any{"theme": "dark"},
		},
		"name": "billing",
	}
	if !reflect.DeepEqual(expected, exported) {
		t.Fatalf("preload export mismatch:\nwant: %#v\n got: %#v", expected, exported)
	}

	before := counting.total()
	mustGet(t, reg, "features.ui.theme")
	if after := counting.total(); after != before {
		t.Fatalf("expected preloaded keys served from cache")
	}
}

func TestExportAndPreloadStopAtSelfReferences(t *testing.T) {
	reg, _ := newTestRegistry(t)
	root, err := reg.Root(context.Background())
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	features := mustNode(t, reg, "features")
	root.Set("self", root)
	features.Set("ui", root)

	done := make(chan map[string]any, 1)
	go func() {
		if err := reg.Preload(context.Background()); err != nil {
			t.Errorf("preload: %v", err)
		}
		done <- root.Export()
	}()

	var exported map[string]any
	select {
	case exported = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("export did not return on a self referencing node")
	}
	if _, ok := exported["self"]; ok {
		t.Fatalf("expected self reference omitted, got %v", exported["self"])
	}
	folder, ok := exported["features"].(map[string]any)
	if !ok {
		t.Fatalf("expected features folder, got %T", exported["features"])
	}
	if _, ok := folder["ui"]; ok {
		t.Fatalf("expected cyclic ui omitted, got %v", folder["ui"])
	}
	if folder["beta"] != false {
		t.Fatalf("expected sibling keys exported, got %v", folder)
	}
}

func TestExportRendersSharedNodeUnderEachKey(t *testing.T) {
	reg, _ := newTestRegistry(t)
	mustGet(t, reg, "features.ui.theme")
	api := mustNode(t, reg, "api")
	api.Set("theme", mustNode(t, reg, "features.ui"))

	exported, _ := reg.Export(context.Background())
	want := map[string]any{"theme": "dark"}
	if got := exported["api"].(map[string]any)["theme"]; !reflect.DeepEqual(want, got) {
		t.Fatalf("expected shared node under api, got %#v", got)
	}
	features := exported["features"].(map[string]any)
	if got := features["ui"]; !reflect.DeepEqual(want, got) {
		t.Fatalf("expected shared node under features, got %#v", got)
	}
}

func TestDescribeListsCachedLeaves(t *testing.T) {
	reg, _ := newTestRegistry(t)
	features := mustNode(t, reg, "features")
	if err := features.Preload(context.Background()); err != nil {
		t.Fatalf("preload: %v", err)
	}
	got := features.Describe()
	expected := []FieldDescriptor{
		{Path: "features.beta", Type: "bool"},
		{Path: "features.label", Type: "string"},
		{Path: "features.retries", Type: "int"},
		{Path: "features.ui.theme", Type: "string"},
	}
	if !reflect.DeepEqual(expected, got) {
		t.Fatalf("describe mismatch:\nwant: %#v\n got: %#v", expected, got)
	}
	empty := New(nil)
	root, _ := empty.Root(context.Background())
	if fields := root.Describe(); fields == nil || len(fields) != 0 {
		t.Fatalf("expected empty non-nil descriptors, got %#v", fields)
	}
}

func TestConcurrentGetLooksUpOnce(t *testing.T) {
	reg, counting := newTestRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := reg.Get("api.request_limit"); err != nil || got != 1 {
				t.Errorf("expected 1, got %v err=%v", got, err)
			}
		}()
	}
	wg.Wait()
	if n := counting.lookups("request_limit"); n != 1 {
		t.Fatalf("expected single lookup under concurrency, got %d", n)
	}
}
