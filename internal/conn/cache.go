package conn

import (
	"sort"
	"strings"
)

// Cache maps a server address to its last successful Result.
//
// Only successful results are kept. Addresses are compared
// case-insensitively. Cache is not safe for concurrent use; the
// orchestrator only touches it while holding its gate.
type Cache struct {
	entries map[string]Result
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Result)}
}

func cacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Put stores a successful result. Any other result removes the entry.
func (c *Cache) Put(address string, r Result) {
	if !r.Successful {
		c.Remove(address)
		return
	}
	c.entries[cacheKey(address)] = r
}

// Get returns the cached result for address.
func (c *Cache) Get(address string) (Result, bool) {
	r, ok := c.entries[cacheKey(address)]
	return r, ok
}

// Remove drops the entry for address, if any.
func (c *Cache) Remove(address string) {
	delete(c.entries, cacheKey(address))
}

// Move re-keys the entry for from under to. A missing entry is a no-op.
func (c *Cache) Move(from, to string) {
	fk, tk := cacheKey(from), cacheKey(to)
	if fk == tk {
		return
	}
	if r, ok := c.entries[fk]; ok {
		delete(c.entries, fk)
		c.entries[tk] = r
	}
}

// Addresses returns the cached addresses, sorted.
func (c *Cache) Addresses() []string {
	out := make([]string, 0, len(c.entries))
	for addr := range c.entries {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	return len(c.entries)
}
