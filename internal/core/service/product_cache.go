package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/metrics"
)

const allProductsKey = "all"

func productKey(id int64) string { return "id:" + strconv.FormatInt(id, 10) }

// CacheEntry is a snapshot of store state taken when the entry was populated.
// Exactly one of Product or Products is set.
type CacheEntry struct {
	Product     *domain.Product
	Products    []*domain.Product
	PopulatedAt time.Time
}

// ProductCache is the read cache in front of the catalog store.
//
// Every key has a generation that Invalidate bumps. A reader takes the
// generation before going to the store and Fill only stores the snapshot if
// the generation is unchanged, so a snapshot read before a committed write can
// never land in the cache after that write's invalidation.
type ProductCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	gens    map[string]uint64
	ttl     time.Duration
	now     func() time.Time
}

// NewProductCache returns an empty cache. A ttl of zero keeps entries until
// they are invalidated.
func NewProductCache(ttl time.Duration) *ProductCache {
	return &ProductCache{
		entries: make(map[string]CacheEntry),
		gens:    make(map[string]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the entry for key unless it is absent or expired.
func (c *ProductCache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.ttl > 0 && c.now().Sub(e.PopulatedAt) > c.ttl {
		return CacheEntry{}, false
	}
	return e, ok
}

// Generation returns the token a later Fill for key must present.
func (c *ProductCache) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key]
}

// Fill stores entry under key if no invalidation happened since gen was read.
func (c *ProductCache) Fill(key string, gen uint64, entry CacheEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		metrics.CacheStaleFillsTotal.Inc()
		return false
	}
	entry.PopulatedAt = c.now()
	c.entries[key] = entry
	return true
}

// Invalidate removes keys and bumps their generations.
func (c *ProductCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.gens[k]++
	}
	metrics.CacheInvalidationsTotal.Add(float64(len(keys)))
}

// Len reports the number of live entries.
func (c *ProductCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
