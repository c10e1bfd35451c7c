// Package cache is a bounded hash->certitude LRU (spec.md §3.4, §4.B). The
// cache never locks itself: the caller takes cache.Mutex around any Get/
// Insert pair, exactly as spec §5 requires ("one mutex per cache instance;
// held only around get and insert; no other work done under it").
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cache

import (
	"container/list"
	"sync"

	"github.com/OneOfOne/xxhash"
)

// DefaultHash is the classifier-overridable default: a 64-bit
// non-cryptographic hash of the raw request body, grounded on
// fs.Hrw's use of the same xxhash package for rendezvous hashing.
func DefaultHash(body []byte) uint64 {
	return xxhash.Checksum64(body)
}

type entry struct {
	hash      uint64
	certitude uint16
}

// Cache is a bounded LRU. Capacity 0 disables it: Get always misses and
// Insert is a no-op (spec §4.B bypass rule).
type Cache struct {
	Mutex    sync.Mutex // external mutex: held by the caller, not by Cache itself
	capacity int
	ll       *list.List
	items    map[uint64]*list.Element
}

// New builds a Cache of the given capacity. capacity==0 disables caching.
func New(capacity int) *Cache {
	c := &Cache{capacity: capacity}
	if capacity > 0 {
		c.ll = list.New()
		c.items = make(map[uint64]*list.Element, capacity)
	}
	return c
}

// Disabled reports whether this cache instance is a capacity-0 bypass.
func (c *Cache) Disabled() bool { return c.capacity == 0 }

// Get returns the last-inserted certitude for hash, touching LRU order.
// Callers must hold c.Mutex.
func (c *Cache) Get(hash uint64) (uint16, bool) {
	if c.Disabled() {
		return 0, false
	}
	el, ok := c.items[hash]
	if !ok {
		return 0, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).certitude, true
}

// Insert evicts the least-recently-used entry when at capacity. Callers
// must hold c.Mutex.
func (c *Cache) Insert(hash uint64, certitude uint16) {
	if c.Disabled() {
		return
	}
	if el, ok := c.items[hash]; ok {
		el.Value.(*entry).certitude = certitude
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{hash: hash, certitude: certitude})
	c.items[hash] = el
	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.ll.Back()
	if oldest == nil {
		return
	}
	c.ll.Remove(oldest)
	delete(c.items, oldest.Value.(*entry).hash)
}

// Len reports the number of live entries, for tests/diagnostics only.
func (c *Cache) Len() int {
	if c.Disabled() {
		return 0
	}
	return c.ll.Len()
}
