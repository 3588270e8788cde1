package session

import (
	"maps"
	"sync"

	"github.com/couchcryptid/floodwatch/internal/domain"
)

// WarningCache holds the parsed warnings of one region epoch. Entries are
// inserted once and never mutated; the session replaces the whole cache on
// region change rather than clearing it in place.
type WarningCache struct {
	mu      sync.RWMutex
	entries map[domain.WarningID]domain.ParsedWarning
}

// NewWarningCache creates an empty cache.
func NewWarningCache() *WarningCache {
	return &WarningCache{entries: make(map[domain.WarningID]domain.ParsedWarning)}
}

// Has reports whether id is cached.
func (c *WarningCache) Has(id domain.WarningID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Get returns the cached warning for id, if any.
func (c *WarningCache) Get(id domain.WarningID) (domain.ParsedWarning, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.entries[id]
	return w, ok
}

// Put inserts w under id. It reports false, leaving the cache unchanged,
// when id is already present.
func (c *WarningCache) Put(id domain.WarningID, w domain.ParsedWarning) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		return false
	}
	c.entries[id] = w
	return true
}

// Clear removes every entry.
func (c *WarningCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached warnings.
func (c *WarningCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of the entries, safe to hand to a renderer.
func (c *WarningCache) Snapshot() map[domain.WarningID]domain.ParsedWarning {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.entries)
}
