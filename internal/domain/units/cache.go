package units

import (
	"sync"
	"sync/atomic"
)

// GlobalScope is the cache scope of factors resolved without a product graph.
const GlobalScope = ""

type cacheKey struct {
	scope string
	from  string
	to    string
}

// CacheStats is a point-in-time view of the factor cache.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// FactorCache memoizes resolved conversion factors per scope.
// Values for a key are deterministic, so concurrent writers may race on
// the same key without harm (last write wins).
type FactorCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewFactorCache creates an empty cache.
func NewFactorCache() *FactorCache {
	return &FactorCache{entries: make(map[cacheKey]float64)}
}

// Get returns a cached factor.
func (c *FactorCache) Get(scope, from, to string) (float64, bool) {
	c.mu.RLock()
	f, ok := c.entries[cacheKey{scope, from, to}]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return f, ok
}

// Put stores a factor.
func (c *FactorCache) Put(scope, from, to string, factor float64) {
	c.mu.Lock()
	c.entries[cacheKey{scope, from, to}] = factor
	c.mu.Unlock()
}

// Invalidate drops every entry of one scope, e.g. after a product's unit
// graph changed.
func (c *FactorCache) Invalidate(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.scope == scope {
			delete(c.entries, k)
		}
	}
}

// Clear drops all entries.
func (c *FactorCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]float64)
	c.mu.Unlock()
}

// Stats returns entry count and hit/miss counters.
func (c *FactorCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}
