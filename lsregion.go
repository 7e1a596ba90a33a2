// SPDX-License-Identifier: Apache-2.0

package small

import "math"

// lslabNotUsedID is ordered below every real generation id, so an lslab
// that never received an allocation (or whose committed range is still
// empty) is always eligible for garbage collection.
const lslabNotUsedID = int64(math.MinInt64)

type lslab struct {
	s     *slab
	used  int
	maxID int64
}

// LsRegion is a log-structured bump allocator: each lslab is tagged with
// the maximum generation id of any object allocated from it, and Gc frees
// whole lslabs at once once every id they contain is at or below the
// caller's watermark. Unlike Region, it draws directly from a SlabArena
// (not a SlabCache) and keeps a single-slot recycle cache instead of a
// buddy free-list, per spec.md §4.7.
type LsRegion struct {
	arena      *SlabArena
	slabs      []*lslab
	cachedSlab *slab
	total      int64

	owner *ownerGuard
}

// NewLsRegion creates an empty log-structured region drawing slabs from
// arena.
func NewLsRegion(arena *SlabArena) *LsRegion {
	return &LsRegion{arena: arena, owner: newOwnerGuard()}
}

// Used returns the region's total committed bytes across all live lslabs.
func (l *LsRegion) Used() int64 { return l.total }

// Reserve ensures n bytes, aligned to align, are available at the newest
// lslab without committing them, allocating a fresh lslab (appended
// uncommitted, mirroring Region.Reserve) if the current one has no room.
func (l *LsRegion) Reserve(n int, align int) []byte {
	l.owner.check()
	if align < 1 {
		align = 1
	}

	if len(l.slabs) > 0 {
		top := l.slabs[len(l.slabs)-1]
		addr := top.s.addr() + uintptr(top.used)
		pad := int(alignUp(addr, uintptr(align)) - addr)
		if top.s.size-top.used >= pad+n {
			return top.s.data()[top.used+pad : top.used+pad+n]
		}
	}

	ls := l.newLslab(n + align - 1)
	if ls == nil {
		return nil
	}
	l.slabs = append(l.slabs, ls)
	addr := ls.s.addr()
	pad := int(alignUp(addr, uintptr(align)) - addr)
	return ls.s.data()[pad : pad+n]
}

// Alloc returns n bytes aligned to align, tagged with generation id. id
// must be non-decreasing across calls (spec.md §9's caller-upheld
// invariant); when an id lower than the current lslab's maximum is
// passed, a fresh lslab is started rather than violating that invariant
// silently.
func (l *LsRegion) Alloc(n int, align int, id int64) []byte {
	l.owner.check()
	if align < 1 {
		align = 1
	}

	if len(l.slabs) > 0 {
		top := l.slabs[len(l.slabs)-1]
		if top.maxID == lslabNotUsedID || id >= top.maxID {
			addr := top.s.addr() + uintptr(top.used)
			pad := int(alignUp(addr, uintptr(align)) - addr)
			if top.s.size-top.used >= pad+n {
				buf := top.s.data()[top.used+pad : top.used+pad+n]
				top.used += pad + n
				top.maxID = id
				l.total += int64(pad + n)
				return buf
			}
		}
	}

	ls := l.newLslab(n + align - 1)
	if ls == nil {
		return nil
	}
	l.slabs = append(l.slabs, ls)
	addr := ls.s.addr()
	pad := int(alignUp(addr, uintptr(align)) - addr)
	ls.used = pad + n
	ls.maxID = id
	l.total += int64(pad + n)
	return ls.s.data()[pad : pad+n]
}

func (l *LsRegion) newLslab(minSize int) *lslab {
	if minSize <= l.arena.SlabSize() {
		if l.cachedSlab != nil {
			s := l.cachedSlab
			l.cachedSlab = nil
			return &lslab{s: s, maxID: lslabNotUsedID}
		}
		s := l.arena.Map()
		if s == nil {
			return nil
		}
		return &lslab{s: s, maxID: lslabNotUsedID}
	}
	s := l.arena.GetLarge(minSize)
	if s == nil {
		return nil
	}
	return &lslab{s: s, maxID: lslabNotUsedID}
}

// Gc detaches and releases every lslab at the front of the list whose
// maximum generation id is at or below minID, stopping at the first lslab
// that still has a live id above the watermark.
func (l *LsRegion) Gc(minID int64) {
	l.owner.check()
	for len(l.slabs) > 0 {
		front := l.slabs[0]
		if front.maxID != lslabNotUsedID && front.maxID > minID {
			break
		}
		l.slabs = l.slabs[1:]
		l.total -= int64(front.used)
		l.releaseLslab(front)
	}
}

func (l *LsRegion) releaseLslab(ls *lslab) {
	if ls.s.large {
		l.arena.PutLarge(ls.s)
		return
	}
	if l.cachedSlab != nil {
		l.arena.Unmap(ls.s)
		return
	}
	l.cachedSlab = ls.s
}

// Destroy releases every lslab (and the recycle cache slot, if occupied)
// back to the arena.
func (l *LsRegion) Destroy() {
	l.owner.check()
	for _, ls := range l.slabs {
		if ls.s.large {
			l.arena.PutLarge(ls.s)
		} else {
			l.arena.Unmap(ls.s)
		}
	}
	if l.cachedSlab != nil {
		l.arena.Unmap(l.cachedSlab)
		l.cachedSlab = nil
	}
	l.slabs = nil
	l.total = 0
}
