package convert

import (
	"container/list"

	"github.com/golang/snappy"

	"github.com/iv3d/brickstore/internal/base"
)

// writeCache is the converter's brick-sized LRU write-back cache (spec.md
// §4.5 step 2: "Allocate an LRU cache of brick-sized buffers totaling ~=
// mem_limit / (brick_bytes + entry_overhead) entries"). Entries evicted
// under memory pressure are spilled compressed via snappy rather than
// dropped, since a converter pass revisits neighbor bricks repeatedly
// during overlap-fill and re-reading from the not-yet-finalized octree file
// is not an option (the ToC entries for not-yet-written bricks don't exist
// yet).
type writeCache struct {
	capacity int
	brickLen int
	entries  map[base.BrickKey]*list.Element
	order    *list.List // front = most recently used
	spill    map[base.BrickKey][]byte
	dirty    map[base.BrickKey]bool
}

type cacheEntry struct {
	key  base.BrickKey
	data []byte
}

func newWriteCache(memBudget int, brickLen, entryOverhead int) *writeCache {
	capacity := memBudget / (brickLen + entryOverhead)
	if capacity < 1 {
		capacity = 1
	}
	return &writeCache{
		capacity: capacity,
		brickLen: brickLen,
		entries:  make(map[base.BrickKey]*list.Element),
		order:    list.New(),
		spill:    make(map[base.BrickKey][]byte),
		dirty:    make(map[base.BrickKey]bool),
	}
}

// Put installs or updates a brick's bytes in the cache, marking it dirty,
// and evicts the least-recently-used entry (spilling it compressed) if the
// cache is over capacity.
func (c *writeCache) Put(key base.BrickKey, data []byte) {
	c.dirty[key] = true
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).data = data
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, data: data})
	c.entries[key] = el
	delete(c.spill, key)
	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *writeCache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.entries, e.key)
	c.spill[e.key] = snappy.Encode(nil, e.data)
}

// Get returns a brick's bytes, decompressing from spill if it was evicted.
func (c *writeCache) Get(key base.BrickKey) ([]byte, bool) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).data, true
	}
	if raw, ok := c.spill[key]; ok {
		data, err := snappy.Decode(nil, raw)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// DirtyKeys returns every key that has been written since the last
// MarkClean, in no particular order; the converter's flushDirty drains
// these before compression (spec.md §5 "the converter's compress+compact pass assumes
// all dirty entries have flushed before it runs").
func (c *writeCache) DirtyKeys() []base.BrickKey {
	keys := make([]base.BrickKey, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	return keys
}

// MarkClean clears the dirty set after a flush.
func (c *writeCache) MarkClean() {
	c.dirty = make(map[base.BrickKey]bool)
}
