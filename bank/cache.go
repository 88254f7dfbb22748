/*
cache.go - Shared in-process caches

PURPOSE:
  Three pieces of derived, disposable state live behind one mutual-exclusion
  lock: the per-category summary cache, the item-metadata cache, and each
  requester's last viewed category/page. One lock keeps the invariants simple;
  it is only ever held for the duration of a single access, never across a
  store call.

SUMMARY CACHE CONTRACT:
  After any store mutation touching category C, the caller MUST invalidate C
  before the next read is considered correct. The cache never self-invalidates
  on a timer. The "all invalid" flag distinguishes "cold cache, recompute
  everything in bulk" from "this one entry missed": until something is stored
  after InvalidateAll, per-category misses must not be trusted as zero.
*/
package bank

import "sync"

type summaryKey struct {
	key StorageKey
	cat Category
}

type viewState struct {
	cat  Category
	page int
}

// Cache holds the engine's shared derived state. The zero value is not usable;
// call NewCache.
type Cache struct {
	mu         sync.Mutex
	summaries  map[summaryKey]CategorySummary
	allInvalid bool
	items      map[uint32]*ItemInfo // nil entry = known-missing metadata
	lastView   map[RequesterID]viewState
}

func NewCache() *Cache {
	return &Cache{
		summaries:  make(map[summaryKey]CategorySummary),
		allInvalid: true,
		items:      make(map[uint32]*ItemInfo),
		lastView:   make(map[RequesterID]viewState),
	}
}

// =============================================================================
// CATEGORY SUMMARIES
// =============================================================================

// Summary returns the cached aggregate for (key, cat), if present.
func (c *Cache) Summary(key StorageKey, cat Category) (CategorySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.summaries[summaryKey{key, cat}]
	return s, ok
}

// StoreSummary sets or replaces a cached aggregate and clears the all-invalid
// flag: at least one entry is now fresh, so misses mean "not cached", not
// "unknown everywhere".
func (c *Cache) StoreSummary(key StorageKey, cat Category, s CategorySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[summaryKey{key, cat}] = s
	c.allInvalid = false
}

// InvalidateCategory drops cat's entries for every storage key.
func (c *Cache) InvalidateCategory(cat Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.summaries {
		if k.cat == cat {
			delete(c.summaries, k)
		}
	}
}

// InvalidateAll clears the whole summary cache and marks it cold.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = make(map[summaryKey]CategorySummary)
	c.allInvalid = true
}

// AllInvalid reports whether bulk reads must recompute everything rather than
// trust per-category misses.
func (c *Cache) AllInvalid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allInvalid
}

// =============================================================================
// ITEM METADATA
// =============================================================================

// Item returns cached metadata. cached=false means the id has never been
// looked up; ok=false with cached=true means the catalog is known to have no
// such item (negative results are cached too).
func (c *Cache) Item(id uint32) (info ItemInfo, ok, cached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ptr, hit := c.items[id]
	if !hit {
		return ItemInfo{}, false, false
	}
	if ptr == nil {
		return ItemInfo{}, false, true
	}
	return *ptr, true, true
}

// StoreItem caches a catalog lookup result, including misses.
func (c *Cache) StoreItem(id uint32, info ItemInfo, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.items[id] = nil
		return
	}
	copied := info
	c.items[id] = &copied
}

// =============================================================================
// LAST VIEWED PAGE
// =============================================================================

// SetView remembers the category and page a requester last browsed, so a
// single-item withdrawal can land back on the same listing.
func (c *Cache) SetView(id RequesterID, cat Category, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastView[id] = viewState{cat, page}
}

// View returns the requester's last viewed category and page.
func (c *Cache) View(id RequesterID) (Category, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lastView[id]
	return v.cat, v.page, ok
}

// DropView forgets a requester's view state (on disconnect).
func (c *Cache) DropView(id RequesterID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastView, id)
}
