package store

import (
	"sync"
	"time"

	"github.com/bazarhq/bazar/internal/metrics"
)

// documentCache holds decoded collection documents keyed by resolved
// absolute path. Entries expire after a fixed TTL; a write refreshes the
// entry for its path. The cache is owned by a Store instance, never shared
// globally, and is not coherent across processes.
type documentCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	doc     Document
	expires time.Time
}

func newDocumentCache(ttl time.Duration, now func() time.Time) *documentCache {
	return &documentCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *documentCache) get(path string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || !entry.expires.After(c.now()) {
		metrics.StoreCacheMissesTotal.Inc()
		return nil, false
	}

	metrics.StoreCacheHitsTotal.Inc()
	return entry.doc, true
}

func (c *documentCache) put(path string, doc Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = cacheEntry{doc: doc, expires: c.now().Add(c.ttl)}
	metrics.StoreCachedDocuments.Set(float64(len(c.entries)))
}

func (c *documentCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, path)
	metrics.StoreCachedDocuments.Set(float64(len(c.entries)))
}

func (c *documentCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	metrics.StoreCachedDocuments.Set(0)
}

func (c *documentCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
