package registry

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ProgramCache stores compiled rule programs keyed by expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares cache between the default evaluator and callers.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// TTLProgramCache is a ProgramCache with expiry and a size bound.
type TTLProgramCache struct {
	cache *ttlcache.Cache[string, any]
}

var _ ProgramCache = (*TTLProgramCache)(nil)

// NewTTLProgramCache keeps at most capacity programs, each for ttl after its
// last use. A zero capacity is unbounded. Expired items are evicted lazily on
// access; call Start for background eviction.
func NewTTLProgramCache(ttl time.Duration, capacity uint64) *TTLProgramCache {
	opts := []ttlcache.Option[string, any]{
		ttlcache.WithTTL[string, any](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, any](capacity))
	}
	return &TTLProgramCache{cache: ttlcache.New(opts...)}
}

func (c *TTLProgramCache) Get(key string) (any, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (c *TTLProgramCache) Set(key string, value any) {
	c.cache.Set(key, value, ttlcache.DefaultTTL)
}

// Len reports the number of cached programs.
func (c *TTLProgramCache) Len() int {
	return c.cache.Len()
}

// Start runs background eviction until Stop.
func (c *TTLProgramCache) Start() {
	go c.cache.Start()
}

// Stop ends background eviction. It must follow Start.
func (c *TTLProgramCache) Stop() {
	c.cache.Stop()
}
