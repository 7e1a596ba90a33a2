// SPDX-License-Identifier: Apache-2.0

package small

import "unsafe"

// slabMagic is stamped on every slab header, mirroring small/slab_cache.h's
// slab_magic constant. Nothing in this package reads it back to validate a
// slab.
const slabMagic uint32 = 0xeb123741

// slab is the common unit recycled by SlabArena and carved by SlabCache. It
// never embeds payload bytes the way the C original prepends a header to
// the slab's data region; instead ptr/size describe a byte range inside a
// Go-heap buffer kept alive by ptr itself being a live interior pointer —
// the same pattern the teacher's slabArena/monotonicArena use
// (unsafe.Pointer(unsafe.SliceData(buf))).
type slab struct {
	ptr   unsafe.Pointer
	size  int
	order uint8
	large bool
	magic uint32
	inUse bool
}

func newSlab(ptr unsafe.Pointer, size int, order uint8, large bool) *slab {
	return &slab{ptr: ptr, size: size, order: order, large: large, magic: slabMagic}
}

// data exposes the slab's byte range as a slice. Safe as long as callers
// don't retain it past the slab being recycled.
func (s *slab) data() []byte {
	return unsafe.Slice((*byte)(s.ptr), s.size)
}

// addr returns the slab's base address, used as both a stable identity and
// a masking key for owner recovery.
func (s *slab) addr() uintptr {
	return uintptr(s.ptr)
}

// splitSlab splits an order-(childOrder+1) slab in half, returning the low
// and high buddies at childOrder. Alignment is preserved by construction:
// a block of size S always starts at an address that is itself a multiple
// of S, so halving it yields two blocks each aligned to S/2.
func splitSlab(parent *slab, childOrder uint8) (lo, hi *slab) {
	half := parent.size / 2
	lo = newSlab(parent.ptr, half, childOrder, false)
	hi = newSlab(unsafe.Pointer(uintptr(parent.ptr)+uintptr(half)), half, childOrder, false)
	return lo, hi
}

// buddyAddr returns the address of s's buddy at the given order: the
// address obtained by complementing the order-th bit (the bit at position
// log2(orderSize)) of s's own address.
func buddyAddr(s *slab, orderSize uintptr) uintptr {
	return s.addr() ^ orderSize
}
