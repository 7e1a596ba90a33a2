// SPDX-License-Identifier: Apache-2.0

package small

import (
	"encoding/binary"
	"math"
)

// maxColdFractionLB mirrors MAX_COLD_FRACTION_LB from mempool.c: a cold
// slab is promoted back to hot once its free-slot count reaches
// objCount >> maxColdFractionLB (i.e. 1/8th).
const maxColdFractionLB = 3

// noFree marks the end of a slab's intra-slab free list.
const noFree = math.MaxUint64

// mslab is one slab's worth of fixed-size object slots, tracked by exactly
// one Mempool. Unlike the C original, the header lives in this Go struct
// rather than being prepended to the slab's byte range, so every byte of
// the underlying slab is available to objects (no header-overhead deduction
// feeds into objCount here).
type mslab struct {
	s        *slab
	addr     uintptr
	pool     *Mempool
	freeHead uint64 // byte offset of the first free slot, or noFree
	freeTail uint32 // byte offset of the first never-touched slot
	nfree    int

	inHot bool
	// tree links (addrTree)
	left, right, parent *mslab
	color                bool

	inCold              bool
	coldPrev, coldNext *mslab
}

// coldList is a small intrusive doubly-linked list of cold mslabs,
// mirroring mempool's rlist-based cold_slabs per spec.md §9's guidance to
// replace intrusive lists with typed handles.
type coldList struct {
	head, tail *mslab
}

func (cl *coldList) pushFront(m *mslab) {
	m.coldPrev = nil
	m.coldNext = cl.head
	if cl.head != nil {
		cl.head.coldPrev = m
	}
	cl.head = m
	if cl.tail == nil {
		cl.tail = m
	}
	m.inCold = true
}

func (cl *coldList) remove(m *mslab) {
	if !m.inCold {
		return
	}
	if m.coldPrev != nil {
		m.coldPrev.coldNext = m.coldNext
	} else {
		cl.head = m.coldNext
	}
	if m.coldNext != nil {
		m.coldNext.coldPrev = m.coldPrev
	} else {
		cl.tail = m.coldPrev
	}
	m.coldPrev, m.coldNext = nil, nil
	m.inCold = false
}

func (cl *coldList) popFront() *mslab {
	m := cl.head
	if m != nil {
		cl.remove(m)
	}
	return m
}

func (cl *coldList) empty() bool { return cl.head == nil }

// MempoolStats mirrors struct mempool_stats from include/small/mempool.h.
type MempoolStats struct {
	ObjSize   int
	ObjCount  int
	SlabSize  int
	SlabCount int
	SlabStats SlabStats
}

// Mempool is a fixed-size object pool built on one SlabCache order, using
// an address-ordered tree to always allocate from the lowest-addressed
// partially-free ("hot") slab, per spec.md §4.4.
type Mempool struct {
	cache     *SlabCache
	objSize   int
	slabOrder uint8
	slabSize  int
	objCount  int
	slabMask  uintptr

	hot   addrTree
	cold  coldList
	spare *mslab

	index    map[uintptr]*mslab
	numSlabs int
	stats    SlabStats

	owner  *ownerGuard
	logger *zapLike
}

// overheadRatio mirrors OVERHEAD_RATIO from mempool.h: the heuristic caps
// internal fragmentation at roughly 1%.
const overheadRatio = 0.01

// NewMempool creates a pool for fixed-size objects of objSize bytes,
// picking the smallest slab order that keeps at least 4 objects per slab
// and internal fragmentation under ~1%, per spec.md §4.4.
func NewMempool(cache *SlabCache, objSize int) *Mempool {
	overhead := objSize
	if overhead < 64 {
		overhead = 64
	}
	slabSize := int(float64(overhead) / overheadRatio)
	if slabSize > cache.Arena().SlabSize() {
		slabSize = cache.Arena().SlabSize()
	}
	order := cache.Order(slabSize)
	if order > cache.OrderMax() {
		order = cache.OrderMax()
	}
	return NewMempoolWithOrder(cache, objSize, order)
}

// NewMempoolWithOrder creates a pool pinned to a specific slab order,
// mirroring mempool_create_with_order.
func NewMempoolWithOrder(cache *SlabCache, objSize int, order uint8) *Mempool {
	if objSize < 8 {
		objSize = 8 // object_size >= sizeof(pointer), spec.md §3 invariant
	}
	slabSize := cache.OrderSize(order)
	objCount := slabSize / objSize
	if objCount == 0 {
		objCount = 1
	}
	return &Mempool{
		cache:     cache,
		objSize:   objSize,
		slabOrder: order,
		slabSize:  slabSize,
		objCount:  objCount,
		slabMask:  ^uintptr(slabSize - 1),
		index:     make(map[uintptr]*mslab),
		owner:     newOwnerGuard(),
		logger:    newZapLike(nil),
	}
}

// ObjSize returns the fixed object size this pool serves.
func (p *Mempool) ObjSize() int { return p.objSize }

// Stats reports this pool's current accounting, per spec.md §6.
func (p *Mempool) Stats() MempoolStats {
	return MempoolStats{
		ObjSize:   p.objSize,
		ObjCount:  p.objCount,
		SlabSize:  p.slabSize,
		SlabCount: p.numSlabs,
		SlabStats: p.stats,
	}
}

// Alloc returns a zero-length-backed slot of ObjSize() bytes, or nil if the
// pool could not obtain a fresh slab from its cache.
func (p *Mempool) Alloc() []byte {
	p.owner.check()

	m := p.hot.Min()
	if m == nil {
		switch {
		case p.spare != nil:
			m = p.spare
			p.spare = nil
		case !p.cold.empty():
			m = p.cold.popFront()
		default:
			m = p.getFreshSlab()
			if m == nil {
				return nil
			}
		}
		p.hot.Insert(m)
		m.inHot = true
	}

	p.stats.Used += int64(p.objSize)
	return p.mslabAlloc(m)
}

// getFreshSlab requests a new order-pinned slab from the cache and wires it
// up as a new, empty mslab tracked by this pool. It returns nil (without
// side effects) if the cache/arena/quota chain is exhausted.
func (p *Mempool) getFreshSlab() *mslab {
	s := p.cache.GetWithOrder(p.slabOrder)
	if s == nil {
		return nil
	}
	m := &mslab{
		s:        s,
		addr:     s.addr(),
		pool:     p,
		freeHead: noFree,
	}
	p.index[m.addr] = m
	p.numSlabs++
	p.stats.Total += int64(p.slabSize)
	return m
}

func (p *Mempool) mslabAlloc(m *mslab) []byte {
	var offset uint32
	if m.freeHead != noFree {
		offset = uint32(m.freeHead)
		m.freeHead = binary.LittleEndian.Uint64(m.s.data()[offset:])
		m.nfree--
	} else {
		offset = m.freeTail
		m.freeTail += uint32(p.objSize)
	}
	if p.nfreeTotal(m) == 0 {
		p.hot.Remove(m)
		m.inHot = false
	}
	return m.s.data()[offset : offset+uint32(p.objSize)]
}

// remainingFree returns how many objects m has never handed out yet
// (neither on its free list nor yet carved from the untouched tail).
func (p *Mempool) remainingFree(m *mslab) int {
	return p.objCount - int(m.freeTail)/p.objSize
}

// nfreeTotal is the live count of slots available for allocation in m:
// slots on the free list plus never-touched tail slots.
func (p *Mempool) nfreeTotal(m *mslab) int {
	return m.nfree + p.remainingFree(m)
}

// Free returns obj, previously obtained from Alloc, to its owning slab.
func (p *Mempool) Free(obj []byte) {
	p.owner.check()
	m := p.OwningSlab(obj)
	if m == nil {
		violation(p.logger, "mempool: free of pointer not owned by this pool")
	}
	p.freeToSlab(m, obj)
}

// OwningSlab recovers the mslab handle that owns obj by masking its address
// to the pool's slab size — the safe surface spec.md §9 calls for in place
// of exposing a raw container_of-style pointer.
func (p *Mempool) OwningSlab(obj []byte) *mslab {
	if len(obj) == 0 {
		return nil
	}
	key := addrOf(obj) & p.slabMask
	return p.index[key]
}

func (p *Mempool) freeToSlab(m *mslab, obj []byte) {
	offset := uint32(addrOf(obj) - m.addr)
	binary.LittleEndian.PutUint64(m.s.data()[offset:], m.freeHead)
	m.freeHead = uint64(offset)
	m.nfree++
	p.stats.Used -= int64(p.objSize)

	total := p.nfreeTotal(m)
	switch {
	case !m.inHot && total >= p.objCount>>maxColdFractionLB:
		p.cold.remove(m)
		p.hot.Insert(m)
		m.inHot = true
	case total == 1:
		p.cold.pushFront(m)
	case total == p.objCount:
		p.hot.Remove(m)
		m.inHot = false
		p.retireEmptySlab(m)
	}
}

// retireEmptySlab implements the spare-slot policy of spec.md §4.4: at most
// one fully-empty slab is retained (the one with the smaller address, to
// keep live allocations concentrated at low addresses), everything else
// fully-empty goes back to the cache.
func (p *Mempool) retireEmptySlab(m *mslab) {
	switch {
	case p.spare == nil:
		p.spare = m
	case p.spare.addr > m.addr:
		p.releaseSlab(p.spare)
		p.spare = m
	default:
		p.releaseSlab(m)
	}
}

func (p *Mempool) releaseSlab(m *mslab) {
	delete(p.index, m.addr)
	p.numSlabs--
	p.stats.Total -= int64(p.slabSize)
	p.cache.PutWithOrder(m.s)
}

// Destroy returns every slab this pool holds back to its cache. p.spare,
// if set, is never removed from p.index when it is retired (see
// retireEmptySlab), so it is already covered by this loop — releasing it
// separately as well would hand the same slab to the cache twice.
func (p *Mempool) Destroy() {
	p.owner.check()
	for _, m := range p.index {
		p.cache.PutWithOrder(m.s)
	}
	p.index = make(map[uintptr]*mslab)
	p.spare = nil
	p.numSlabs = 0
	p.stats = SlabStats{}
}
