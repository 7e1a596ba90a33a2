// SPDX-License-Identifier: Apache-2.0

package small

// Ibuf is a single contiguous growable input buffer with three live
// cursors (read position, write position, and the backing slab's
// capacity), used to accumulate data read from the network before it's
// parsed and consumed, per spec.md §4.8.
type Ibuf struct {
	cache         *SlabCache
	startCapacity int
	s             *slab
	rpos, wpos    int

	owner *ownerGuard
}

// NewIbuf creates an empty input buffer that grows in multiples of
// startCapacity, drawing slabs from cache.
func NewIbuf(cache *SlabCache, startCapacity int) *Ibuf {
	return &Ibuf{cache: cache, startCapacity: startCapacity, owner: newOwnerGuard()}
}

// Used returns the number of unconsumed bytes between rpos and wpos.
func (b *Ibuf) Used() int { return b.wpos - b.rpos }

// Unused returns how many bytes can still be written before the backing
// slab is exhausted.
func (b *Ibuf) Unused() int {
	if b.s == nil {
		return 0
	}
	return b.s.size - b.wpos
}

// Capacity returns the backing slab's total size, or 0 if none is
// allocated yet.
func (b *Ibuf) Capacity() int {
	if b.s == nil {
		return 0
	}
	return b.s.size
}

// Reserve returns a slice of at least n unused bytes at wpos, reallocating
// the backing slab (preserving [rpos, wpos)) if necessary.
func (b *Ibuf) Reserve(n int) []byte {
	b.owner.check()
	if b.s != nil && b.s.size-b.wpos >= n {
		return b.s.data()[b.wpos : b.wpos+n]
	}
	return b.reserveSlow(n)
}

func (b *Ibuf) reserveSlow(n int) []byte {
	used := b.Used()
	newCap := b.startCapacity
	if newCap == 0 {
		newCap = n
	}
	for newCap < used+n {
		newCap *= 2
	}

	ns := b.acquire(newCap)
	if ns == nil {
		return nil
	}
	if b.s != nil {
		copy(ns.data(), b.s.data()[b.rpos:b.wpos])
		b.release(b.s)
	}
	b.s = ns
	b.wpos = used
	b.rpos = 0
	return b.s.data()[b.wpos : b.wpos+n]
}

func (b *Ibuf) acquire(size int) *slab {
	order := b.cache.Order(size)
	if order > b.cache.OrderMax() {
		return b.cache.GetLarge(size)
	}
	return b.cache.GetWithOrder(order)
}

func (b *Ibuf) release(s *slab) {
	if s.large {
		b.cache.PutLarge(s)
	} else {
		b.cache.PutWithOrder(s)
	}
}

// Alloc reserves and commits n bytes at wpos.
func (b *Ibuf) Alloc(n int) []byte {
	buf := b.Reserve(n)
	if buf == nil {
		return nil
	}
	b.wpos += n
	return buf[:n]
}

// Shrink releases the backing slab entirely if the buffer is empty, or
// reallocates to the smallest capacity (a multiple of startCapacity) that
// still fits the unconsumed bytes.
func (b *Ibuf) Shrink() {
	b.owner.check()
	used := b.Used()
	if used == 0 {
		if b.s != nil {
			b.release(b.s)
			b.s = nil
		}
		b.rpos, b.wpos = 0, 0
		return
	}

	target := b.startCapacity
	if target == 0 {
		target = used
	}
	for target < used {
		target *= 2
	}
	if b.s != nil && b.s.size == target {
		return
	}

	ns := b.acquire(target)
	if ns == nil {
		return
	}
	copy(ns.data(), b.s.data()[b.rpos:b.wpos])
	b.release(b.s)
	b.s = ns
	b.wpos = used
	b.rpos = 0
}

// Discard rewinds wpos by n bytes, undoing the tail of the most recent
// Alloc calls. n must not exceed Used.
func (b *Ibuf) Discard(n int) {
	b.owner.check()
	if n > b.Used() {
		violation(nil, "ibuf: discard %d exceeds used %d", n, b.Used())
	}
	b.wpos -= n
}

// Truncate discards bytes written after a savepoint obtained from Used,
// leaving exactly `mark` unconsumed bytes. It is safe across any number of
// reallocations performed in between, because the mark is a byte count
// relative to rpos, not a raw pointer.
func (b *Ibuf) Truncate(mark int) {
	b.owner.check()
	if mark > b.Used() {
		violation(nil, "ibuf: truncate mark %d exceeds used %d", mark, b.Used())
	}
	b.wpos = b.rpos + mark
}

// Reset discards all buffered data without releasing the backing slab.
func (b *Ibuf) Reset() {
	b.owner.check()
	b.rpos, b.wpos = 0, 0
}

// Destroy releases the backing slab, if any, and zeros the buffer.
func (b *Ibuf) Destroy() {
	b.owner.check()
	if b.s != nil {
		b.release(b.s)
		b.s = nil
	}
	b.rpos, b.wpos = 0, 0
}
