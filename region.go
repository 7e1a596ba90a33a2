// SPDX-License-Identifier: Apache-2.0

package small

// rslab is one slab backing a Region, tracked newest-last in Region.slabs.
type rslab struct {
	s    *slab
	used int
}

// Region is a bump allocator over a growing list of slabs, with savepoint
// rollback via Truncate. It never reuses freed bytes within a live slab;
// the only way bytes are reclaimed is truncating back past them or
// destroying the whole region.
type Region struct {
	cache *SlabCache
	slabs []*rslab
	total int64

	pendingReserve bool
	onAlloc        func(n int)

	owner *ownerGuard
}

// NewRegion creates an empty region drawing slabs from cache.
func NewRegion(cache *SlabCache) *Region {
	return &Region{cache: cache, owner: newOwnerGuard()}
}

// SetOnAlloc installs a callback invoked with the committed size after
// every successful Alloc/AlignedAlloc.
func (r *Region) SetOnAlloc(f func(n int)) { r.onAlloc = f }

// Used returns the region's total committed bytes, usable as a Truncate
// mark.
func (r *Region) Used() int64 { return r.total }

// Reserve returns a slice of at least n unused bytes at the region's
// current tail, without committing them. A debug build panics if Reserve
// is called twice without an intervening Alloc, per spec.md §7's
// "Violated Contract" class.
func (r *Region) Reserve(n int) []byte {
	r.owner.check()
	if DebugOwnerChecks && r.pendingReserve {
		violation(nil, "region: reserve called twice without an intervening alloc")
	}

	if len(r.slabs) > 0 {
		top := r.slabs[len(r.slabs)-1]
		if top.s.size-top.used >= n {
			r.pendingReserve = true
			return top.s.data()[top.used : top.used+n]
		}
	}
	rs := r.newRslab(n)
	if rs == nil {
		return nil
	}
	r.slabs = append(r.slabs, rs)
	r.pendingReserve = true
	return rs.s.data()[0:n]
}

func (r *Region) newRslab(minSize int) *rslab {
	size := minSize
	if size < r.cache.Order0Size() {
		size = r.cache.Order0Size()
	}
	order := r.cache.Order(size)
	var s *slab
	if order > r.cache.OrderMax() {
		s = r.cache.GetLarge(size)
	} else {
		s = r.cache.GetWithOrder(order)
	}
	if s == nil {
		return nil
	}
	return &rslab{s: s}
}

func (r *Region) commit(n int) {
	top := r.slabs[len(r.slabs)-1]
	top.used += n
	r.total += int64(n)
	r.pendingReserve = false
	if r.onAlloc != nil {
		r.onAlloc(n)
	}
}

// Alloc reserves and commits n bytes, returning them as a fresh slice.
func (r *Region) Alloc(n int) []byte {
	buf := r.Reserve(n)
	if buf == nil {
		return nil
	}
	r.commit(n)
	return buf[:n]
}

// AlignedAlloc allocates n bytes such that the returned slice's address is
// a multiple of alignment, accounting for the padding at the current tail
// in the committed size.
func (r *Region) AlignedAlloc(n int, alignment int) []byte {
	r.owner.check()
	pad := 0
	if len(r.slabs) > 0 {
		top := r.slabs[len(r.slabs)-1]
		addr := top.s.addr() + uintptr(top.used)
		pad = int(alignUp(addr, uintptr(alignment)) - addr)
	}
	buf := r.Reserve(pad + n)
	if buf == nil {
		return nil
	}
	// Reserve may have started a fresh rslab, whose base is aligned
	// differently from the old tail; measure the padding again there.
	if p := int(alignUp(addrOf(buf), uintptr(alignment)) - addrOf(buf)); p != pad {
		r.pendingReserve = false
		pad = p
		buf = r.Reserve(pad + n)
		if buf == nil {
			return nil
		}
	}
	r.commit(pad + n)
	return buf[pad : pad+n]
}

// Truncate rewinds the region to a mark previously obtained from Used,
// releasing whole rslabs whose bytes lie entirely past the mark and
// rewinding the used count of the rslab straddling it.
func (r *Region) Truncate(mark int64) {
	r.owner.check()
	if mark > r.total {
		violation(nil, "region: truncate mark %d is ahead of used %d", mark, r.total)
	}
	remainder := r.total - mark
	for remainder > 0 && len(r.slabs) > 0 {
		top := r.slabs[len(r.slabs)-1]
		if int64(top.used) <= remainder {
			remainder -= int64(top.used)
			r.releaseRslab(top)
			r.slabs = r.slabs[:len(r.slabs)-1]
		} else {
			top.used -= int(remainder)
			remainder = 0
		}
	}
	r.total = mark
	r.pendingReserve = false
}

// Join returns n contiguous bytes covering the region's last n logical
// bytes. If they already live in a single rslab it returns that range
// directly; otherwise it allocates a fresh n-byte run at the tail and
// copies the spanning pieces into it, in order.
func (r *Region) Join(n int) []byte {
	r.owner.check()
	if n <= 0 || int64(n) > r.total {
		return nil
	}
	if len(r.slabs) > 0 {
		top := r.slabs[len(r.slabs)-1]
		if top.used >= n {
			return top.s.data()[top.used-n : top.used]
		}
	}

	remaining := n
	var chunks [][]byte
	for i := len(r.slabs) - 1; i >= 0 && remaining > 0; i-- {
		s := r.slabs[i]
		take := s.used
		if take > remaining {
			take = remaining
		}
		chunks = append(chunks, s.s.data()[s.used-take:s.used])
		remaining -= take
	}
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}

	dst := r.Alloc(n)
	if dst == nil {
		return nil
	}
	off := 0
	for _, c := range chunks {
		off += copy(dst[off:], c)
	}
	return dst
}

func (r *Region) releaseRslab(rs *rslab) {
	if rs.s.large {
		r.cache.PutLarge(rs.s)
	} else {
		r.cache.PutWithOrder(rs.s)
	}
}

// Destroy releases every rslab back to the cache and resets the region to
// empty.
func (r *Region) Destroy() {
	r.owner.check()
	for _, rs := range r.slabs {
		r.releaseRslab(rs)
	}
	r.slabs = nil
	r.total = 0
	r.pendingReserve = false
}
