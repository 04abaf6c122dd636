package builtin

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry is one cached fetch result.
type cacheEntry struct {
	content   string
	timestamp time.Time
	url       string
}

// fetchCache is a TTL-aware LRU cache for fetched page content, keyed by a
// digest of the requested URL. hashicorp/golang-lru/v2 backs recency
// eviction (donor already carries this dependency elsewhere — the skill
// AST cache — so the web tool's cache reuses it rather than hand-rolling
// a container/list LRU).
type fetchCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, *cacheEntry]
	ttl   time.Duration
}

func newFetchCache(ttl time.Duration, maxEntries int) *fetchCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	inner, err := lru.New[string, *cacheEntry](maxEntries)
	if err != nil {
		// maxEntries is always >= 1 here, so New cannot fail; panicking
		// would indicate a programmer error in cache construction.
		panic(err)
	}
	return &fetchCache{inner: inner, ttl: ttl}
}

// get returns the cached entry for key, or nil if absent or expired. A
// hit counts as a recent use for LRU purposes (handled by the inner
// lru.Cache on Get).
func (c *fetchCache) get(key string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.inner.Get(key)
	if !ok {
		return nil
	}
	if c.ttl > 0 && time.Since(entry.timestamp) > c.ttl {
		c.inner.Remove(key)
		return nil
	}
	return entry
}

// put inserts or refreshes key's entry, evicting the least recently used
// entry if this insertion would exceed the cache's capacity.
func (c *fetchCache) put(key string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, entry)
}
