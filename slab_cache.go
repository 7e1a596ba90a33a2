// SPDX-License-Identifier: Apache-2.0

package small

import "math/bits"

// OrderMax is the highest buddy order a SlabCache will manage, mirroring
// ORDER_MAX from include/small/slab_cache.h.
const OrderMax = 16

// SlabStats is the {used, total} accounting pair exposed by every layer's
// introspection surface (spec.md §6).
type SlabStats struct {
	Used  int64
	Total int64
}

// SlabCache is a single-threaded buddy-system cache carving uniform raw
// slabs from a SlabArena into power-of-two "ordered" slabs, plus a
// one-off path for slabs larger than the arena's slab size.
type SlabCache struct {
	arena        *SlabArena
	order0Size   int
	order0SizeLB uint8 // log2(order0Size)
	orderMax     uint8
	// freeLists[k] maps a free order-k slab's address to itself, which
	// both serves as a pop-any free list and lets PutWithOrder look its
	// buddy up by address in O(1) instead of scanning.
	freeLists [OrderMax + 1]map[uintptr]*slab
	stats     SlabStats

	owner *ownerGuard
}

// NewSlabCache creates a cache over arena with the given order-0 slab size
// (rounded up to a power of two, capped at the arena's own slab size).
func NewSlabCache(arena *SlabArena, order0Size int) *SlabCache {
	size := int(nextPowerOfTwo(uint64(order0Size)))
	if size > arena.SlabSize() {
		size = arena.SlabSize()
	}
	lb := uint8(log2(uint64(size)))
	orderMax := uint8(log2(uint64(arena.SlabSize())) - uint64(lb))
	if orderMax > OrderMax {
		orderMax = OrderMax
	}
	c := &SlabCache{
		arena:        arena,
		order0Size:   size,
		order0SizeLB: lb,
		orderMax:     orderMax,
		owner:        newOwnerGuard(),
	}
	for i := range c.freeLists {
		c.freeLists[i] = make(map[uintptr]*slab)
	}
	return c
}

// Arena returns the cache's backing arena.
func (c *SlabCache) Arena() *SlabArena { return c.arena }

// Order0Size returns the smallest ordered slab size this cache hands out.
func (c *SlabCache) Order0Size() int { return c.order0Size }

// OrderMax returns the highest valid order for GetWithOrder/PutWithOrder.
func (c *SlabCache) OrderMax() uint8 { return c.orderMax }

// OrderSize returns the byte size of a slab of the given order.
func (c *SlabCache) OrderSize(order uint8) int {
	return c.order0Size << order
}

// Order returns the smallest order whose slab size is >= size, or
// OrderMax()+1 if size exceeds what the buddy tree can serve (the caller
// should fall back to GetLarge).
func (c *SlabCache) Order(size int) uint8 {
	if size <= c.order0Size {
		return 0
	}
	if size > c.arena.SlabSize() {
		return c.orderMax + 1
	}
	return uint8(bits.Len(uint(size-1))) - c.order0SizeLB
}

// GetWithOrder returns a slab of exactly OrderSize(order), splitting a
// higher-order slab from the free lists (or the arena) as needed.
func (c *SlabCache) GetWithOrder(order uint8) *slab {
	c.owner.check()
	return c.getWithOrder(order)
}

func (c *SlabCache) getWithOrder(order uint8) *slab {
	if order > c.orderMax {
		return nil
	}
	if s := c.popFree(order); s != nil {
		s.inUse = true
		return s
	}
	if order == c.orderMax {
		s := c.arena.Map()
		if s == nil {
			return nil
		}
		s.order = order
		s.magic = slabMagic
		s.inUse = true
		c.stats.Total += int64(s.size)
		return s
	}
	parent := c.getWithOrder(order + 1)
	if parent == nil {
		return nil
	}
	lo, hi := splitSlab(parent, order)
	lo.inUse = true
	hi.magic = slabMagic
	lo.magic = slabMagic
	c.freeLists[order][hi.addr()] = hi
	return lo
}

func (c *SlabCache) popFree(order uint8) *slab {
	for addr, s := range c.freeLists[order] {
		delete(c.freeLists[order], addr)
		return s
	}
	return nil
}

// PutWithOrder returns a slab to the cache, coalescing with its buddy at
// the same order repeatedly while possible.
func (c *SlabCache) PutWithOrder(s *slab) {
	c.owner.check()
	c.putWithOrder(s)
}

func (c *SlabCache) putWithOrder(s *slab) {
	s.inUse = false
	order := s.order
	for order < c.orderMax {
		orderSize := uintptr(c.OrderSize(order))
		buddy, ok := c.freeLists[order][buddyAddr(s, orderSize)]
		if !ok {
			break
		}
		delete(c.freeLists[order], buddy.addr())
		lo := s
		if buddy.addr() < s.addr() {
			lo = buddy
		}
		order++
		s = newSlab(lo.ptr, int(orderSize)*2, order, false)
		s.magic = slabMagic
	}
	if order == c.orderMax {
		c.stats.Total -= int64(s.size)
		c.arena.Unmap(s)
		return
	}
	c.freeLists[order][s.addr()] = s
}

// GetLarge returns a one-off slab large enough to hold size bytes, bypassing
// the buddy tree entirely.
func (c *SlabCache) GetLarge(size int) *slab {
	c.owner.check()
	s := c.arena.GetLarge(size)
	if s == nil {
		return nil
	}
	c.stats.Total += int64(s.size)
	return s
}

// PutLarge releases a large slab obtained from GetLarge.
func (c *SlabCache) PutLarge(s *slab) {
	c.owner.check()
	c.stats.Total -= int64(s.size)
	c.arena.PutLarge(s)
}

// Stats returns the cache's aggregate accounting. Only Total (bytes of
// ordered and large slabs the cache holds from its arena) is maintained;
// Used is not tracked and is always zero.
func (c *SlabCache) Stats() SlabStats { return c.stats }
