// SPDX-License-Identifier: Apache-2.0

package small

// smallMempoolMax caps the number of size-classed pools an allocator can
// build, mirroring SMALL_MEMPOOL_MAX.
const smallMempoolMax = 1024

// collectGarbageBatch is the number of deferred frees drained per alloc
// call while in the COLLECT_GARBAGE mode, mirroring small.c's BATCH.
const collectGarbageBatch = 100

// FreeMode selects how SmallAlloc.Free(Delayed) behaves, per spec.md §4.5.
type FreeMode int

const (
	// FreeModeImmediate frees objects as soon as Free is called.
	FreeModeImmediate FreeMode = iota
	// FreeModeCollectGarbage drains the delayed lists in bounded batches
	// before every allocation, until both lists are empty.
	FreeModeCollectGarbage
	// FreeModeDelayed queues FreeDelayed calls instead of freeing them.
	FreeModeDelayed
)

type smallMempool struct {
	pool       *Mempool
	objSizeMin uint32
	delayed    [][]byte
}

// SmallAlloc is a size-classed front end over a SlabCache: a spread of
// Mempools, one per size class, plus a fallback straight to large slabs for
// anything bigger than the classifier's range, per spec.md §4.5.
type SmallAlloc struct {
	cache      *SlabCache
	classifier *SizeClass
	pools      []*smallMempool
	objsizeMax uint32

	mode         FreeMode
	delayedPools []*smallMempool
	delayedLarge [][]byte
	largeIndex   map[uintptr]*slab

	owner *ownerGuard
}

// NewSmallAlloc builds one Mempool per size class between objSizeMin and a
// maximum derived from the cache's largest slab order (at least four
// largest objects per slab), aligned to granularity, growing by
// approximately allocFactor. It returns the actual achieved growth factor
// alongside the allocator, since desired and actual factor can differ
// slightly (spec.md §4.5, §9 supplemental accessor).
func NewSmallAlloc(cache *SlabCache, objSizeMin uint32, granularity uint32, allocFactor float64) (*SmallAlloc, float64) {
	objSizeMin = uint32(alignUp(uintptr(objSizeMin), uintptr(granularity)))

	maxSlab := cache.OrderSize(cache.OrderMax())
	objsizeMax := uint32(alignUp(uintptr(maxSlab/4), uintptr(granularity)))

	classifier := NewSizeClass(granularity, allocFactor, objSizeMin)

	a := &SmallAlloc{
		cache:      cache,
		classifier: classifier,
		objsizeMax: objsizeMax,
		largeIndex: make(map[uintptr]*slab),
		owner:      newOwnerGuard(),
	}
	a.buildPools()
	return a, classifier.ActualFactor()
}

func (a *SmallAlloc) buildPools() {
	var objsize uint32
	for len(a.pools) < smallMempoolMax && objsize < a.objsizeMax {
		prev := objsize
		offset := uint32(len(a.pools))
		objsize = a.classifier.SizeOf(offset)
		if objsize > a.objsizeMax {
			objsize = a.objsizeMax
		}
		a.pools = append(a.pools, &smallMempool{
			pool:       NewMempool(a.cache, int(objsize)),
			objSizeMin: prev + 1,
		})
	}
	a.objsizeMax = objsize
}

// ObjSizeMax returns the largest size routed to a mempool; anything bigger
// falls straight through to the slab cache's large-allocation path.
func (a *SmallAlloc) ObjSizeMax() uint32 { return a.objsizeMax }

func (a *SmallAlloc) poolFor(size uint32) *smallMempool {
	if size > a.objsizeMax {
		return nil
	}
	offset := int(a.classifier.OffsetOf(size))
	if offset >= len(a.pools) {
		return nil
	}
	return a.pools[offset]
}

// Alloc returns size bytes from the appropriately sized pool, or directly
// from the slab cache if size exceeds ObjSizeMax(). Returns nil on
// exhaustion.
func (a *SmallAlloc) Alloc(size uint32) []byte {
	a.owner.check()
	a.collectGarbage()

	sp := a.poolFor(size)
	if sp == nil {
		s := a.cache.GetLarge(int(size))
		if s == nil {
			return nil
		}
		a.largeIndex[s.addr()] = s
		return s.data()
	}
	return sp.pool.Alloc()
}

// Free returns obj, previously obtained from Alloc with the given size, to
// its owning pool (or straight back to the slab cache, for large
// allocations).
func (a *SmallAlloc) Free(obj []byte, size uint32) {
	a.owner.check()
	a.freeImmediate(obj, size)
}

func (a *SmallAlloc) freeImmediate(obj []byte, size uint32) {
	sp := a.poolFor(size)
	if sp == nil {
		a.freeLarge(obj)
		return
	}
	sp.pool.Free(obj)
}

func (a *SmallAlloc) freeLarge(obj []byte) {
	key := addrOf(obj)
	s, ok := a.largeIndex[key]
	if !ok {
		violation(nil, "small_alloc: large free of pointer not owned by this allocator")
	}
	delete(a.largeIndex, key)
	a.cache.PutLarge(s)
}

// FreeDelayed frees obj immediately unless the allocator is in
// FreeModeDelayed, in which case it is queued for a later
// FreeModeCollectGarbage pass.
func (a *SmallAlloc) FreeDelayed(obj []byte, size uint32) {
	a.owner.check()
	if a.mode != FreeModeDelayed || obj == nil {
		a.freeImmediate(obj, size)
		return
	}

	sp := a.poolFor(size)
	if sp == nil {
		a.delayedLarge = append(a.delayedLarge, obj)
		return
	}
	if len(sp.delayed) == 0 {
		a.delayedPools = append(a.delayedPools, sp)
	}
	sp.delayed = append(sp.delayed, obj)
}

// SetDelayedFreeMode toggles delayed-free mode. Turning it off transitions
// through FreeModeCollectGarbage until both delayed lists drain, then lands
// on FreeModeImmediate, per spec.md §4.5.
func (a *SmallAlloc) SetDelayedFreeMode(enabled bool) {
	a.owner.check()
	if enabled {
		a.mode = FreeModeDelayed
	} else {
		a.mode = FreeModeCollectGarbage
	}
}

// collectGarbage drains up to collectGarbageBatch deferred frees before
// every allocation while in FreeModeCollectGarbage, switching to
// FreeModeImmediate once both delayed lists are empty.
func (a *SmallAlloc) collectGarbage() {
	if a.mode != FreeModeCollectGarbage {
		return
	}
	switch {
	case len(a.delayedLarge) > 0:
		n := collectGarbageBatch
		if n > len(a.delayedLarge) {
			n = len(a.delayedLarge)
		}
		for _, obj := range a.delayedLarge[:n] {
			a.freeLarge(obj)
		}
		a.delayedLarge = a.delayedLarge[n:]
	case len(a.delayedPools) > 0:
		sp := a.delayedPools[0]
		n := collectGarbageBatch
		if n > len(sp.delayed) {
			n = len(sp.delayed)
		}
		for _, obj := range sp.delayed[:n] {
			sp.pool.Free(obj)
		}
		sp.delayed = sp.delayed[n:]
		if len(sp.delayed) == 0 {
			a.delayedPools = a.delayedPools[1:]
		}
	default:
		a.mode = FreeModeImmediate
	}
}

// Destroy releases every pool and outstanding large allocation back to the
// slab cache.
func (a *SmallAlloc) Destroy() {
	a.owner.check()
	for _, sp := range a.pools {
		sp.pool.Destroy()
	}
	for _, s := range a.largeIndex {
		a.cache.PutLarge(s)
	}
	a.largeIndex = make(map[uintptr]*slab)
}
