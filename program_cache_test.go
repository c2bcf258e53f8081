package registry

import (
	"context"
	"testing"
	"time"
)

func TestTTLProgramCacheBoundsSize(t *testing.T) {
	cache := NewTTLProgramCache(time.Minute, 2)
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	if cache.Len() != 2 {
		t.Fatalf("expected capacity to bound cache, got %d", cache.Len())
	}
	if value, ok := cache.Get("c"); !ok || value != 3 {
		t.Fatalf("expected newest entry kept, got %v ok=%v", value, ok)
	}
	if _, ok := cache.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestTTLProgramCacheExpires(t *testing.T) {
	cache := NewTTLProgramCache(10*time.Millisecond, 0)
	cache.Set("rule", "program")
	if _, ok := cache.Get("rule"); !ok {
		t.Fatalf("expected fresh entry")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get("rule"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestTTLProgramCacheWithDefaultEvaluator(t *testing.T) {
	cache := NewTTLProgramCache(time.Minute, 16)
	cache.Start()
	defer cache.Stop()

	reg, _ := newTestRegistry(t, WithProgramCache(cache))
	for i := 0; i < 2; i++ {
		got, err := reg.Evaluate(context.Background(), "api", "enabled")
		if err != nil || got != true {
			t.Fatalf("expected true, got %v err=%v", got, err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %d", cache.Len())
	}
}
