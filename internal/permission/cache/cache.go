// Package cache memoizes permission verdicts for the lifetime of a session.
// Entries never expire by time; correctness depends on callers clearing the
// cache after every permission-mutating write and on login/logout.
package cache

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"trailhead/internal/permission"
)

// defaultSize bounds the backing store. Verdicts are tiny; the bound exists
// only to keep a pathological caller from growing the map without limit.
const defaultSize = 1024

// Cache is the process-wide memoization of permission-check results, keyed by
// (operation, resourceID, teamID).
type Cache struct {
	entries *lru.Cache[string, bool]
}

// New creates an empty cache.
func New() *Cache {
	entries, err := lru.New[string, bool](defaultSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic("cache.New: " + err.Error())
	}
	return &Cache{entries: entries}
}

// Get returns the cached verdict for the triple, if present.
func (c *Cache) Get(op permission.Operation, resourceID, teamID *int64) (bool, bool) {
	return c.entries.Get(key(op, resourceID, teamID))
}

// Set stores a verdict for the triple. Last write wins.
func (c *Cache) Set(op permission.Operation, resourceID, teamID *int64, allowed bool) {
	c.entries.Add(key(op, resourceID, teamID), allowed)
}

// Clear wipes all entries. Must be called after login, logout, and any
// successful permission-table write or sync.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len reports the number of cached verdicts.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// key normalizes absent resource and team IDs to an empty-string sentinel so
// omitted and explicit-nil inputs land in the same slot.
func key(op permission.Operation, resourceID, teamID *int64) string {
	var b strings.Builder
	b.WriteString(string(op))
	b.WriteByte('|')
	if resourceID != nil {
		b.WriteString(strconv.FormatInt(*resourceID, 10))
	}
	b.WriteByte('|')
	if teamID != nil {
		b.WriteString(strconv.FormatInt(*teamID, 10))
	}
	return b.String()
}
