// Package cache implements the three pipeline caches (document, transform)
// and the dependency snapshot store. All three follow the same contract:
// lookup-or-compute, with corrupt persisted state downgraded to a miss
// rather than surfaced as an error.
package cache

import (
	"sync"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// DocumentLoader materialises a document for a cache miss.
type DocumentLoader func(uri string) (dtif.Document, error)

// DocumentCache memoises parsed DTIF documents keyed by source URI. It does
// not evict; callers are expected to construct one per build and discard it
// after, bounding memory use to the configured source set.
type DocumentCache struct {
	mu      sync.RWMutex
	entries map[string]dtif.Document
}

// NewDocumentCache returns an empty DocumentCache.
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{entries: make(map[string]dtif.Document)}
}

// GetOrLoad returns the cached document for uri, loading and storing it via
// load on a miss.
func (c *DocumentCache) GetOrLoad(uri string, load DocumentLoader) (dtif.Document, error) {
	c.mu.RLock()
	if doc, ok := c.entries[uri]; ok {
		c.mu.RUnlock()
		return doc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under the write lock: another goroutine may have raced us.
	if doc, ok := c.entries[uri]; ok {
		return doc, nil
	}
	doc, err := load(uri)
	if err != nil {
		return nil, err
	}
	c.entries[uri] = doc
	return doc, nil
}

// Len reports the number of memoised documents.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
