// SPDX-License-Identifier: Apache-2.0

package small

// MaxIovecs is the hard limit on live iovecs an Obuf will grow to. The
// original implementation tunes this at compile time (31 in the
// production path, 128 in an ASAN-instrumented build); spec.md §9 fixes a
// single contract value, chosen to match the production limit.
const MaxIovecs = 31

type obufIovec struct {
	s        *slab
	used     int
	capacity int
}

// ObufSvp is an opaque savepoint captured by Obuf.CreateSvp and consumed by
// Obuf.RollbackToSvp.
type ObufSvp struct {
	pos     int
	iovUsed int
	used    int64
}

// Obuf is an output buffer backed by up to MaxIovecs independently sized
// growable iovecs, suited to building a writev(2)-style scatter list
// incrementally, per spec.md §4.9.
type Obuf struct {
	cache         *SlabCache
	startCapacity int
	iov           [MaxIovecs]*obufIovec
	pos           int // index of the current iov, -1 if none allocated yet
	used          int64

	pendingReserve bool
	owner          *ownerGuard
}

// NewObuf creates an empty output buffer whose first iovec is sized
// startCapacity, drawing slabs from cache.
func NewObuf(cache *SlabCache, startCapacity int) *Obuf {
	return &Obuf{cache: cache, startCapacity: startCapacity, pos: -1, owner: newOwnerGuard()}
}

// Used returns the total committed byte count across every iovec.
func (o *Obuf) Used() int64 { return o.used }

// Pos returns the index of the current (last-written-to) iovec, or -1 if
// none has been allocated yet.
func (o *Obuf) Pos() int { return o.pos }

// Reserve returns a slice of at least n unused bytes at the tail of the
// current iovec, growing to a new iovec if needed. It returns
// ErrIovecOverflow (and a nil slice) if MaxIovecs is exceeded. A debug
// build panics if Reserve is called twice without an intervening Alloc.
func (o *Obuf) Reserve(n int) ([]byte, error) {
	o.owner.check()
	if DebugOwnerChecks && o.pendingReserve {
		violation(nil, "obuf: reserve called twice without an intervening alloc")
	}

	if o.pos >= 0 {
		cur := o.iov[o.pos]
		if cur.capacity-cur.used >= n {
			o.pendingReserve = true
			return cur.s.data()[cur.used : cur.used+n], nil
		}
	}

	if o.pos+1 >= MaxIovecs {
		return nil, ErrIovecOverflow
	}

	capacity := n
	if o.pos < 0 {
		if capacity < o.startCapacity {
			capacity = o.startCapacity
		}
	} else if doubled := o.iov[o.pos].capacity * 2; capacity < doubled {
		capacity = doubled
	}

	order := o.cache.Order(capacity)
	var s *slab
	if order > o.cache.OrderMax() {
		s = o.cache.GetLarge(capacity)
	} else {
		s = o.cache.GetWithOrder(order)
	}
	if s == nil {
		return nil, ErrOutOfQuota
	}

	o.pos++
	o.iov[o.pos] = &obufIovec{s: s, capacity: capacity}
	o.pendingReserve = true
	return s.data()[0:n], nil
}

// Alloc reserves and commits n bytes to the current iovec.
func (o *Obuf) Alloc(n int) ([]byte, error) {
	buf, err := o.Reserve(n)
	if err != nil {
		return nil, err
	}
	cur := o.iov[o.pos]
	cur.used += n
	o.used += int64(n)
	o.pendingReserve = false
	return buf[:n], nil
}

// CreateSvp captures the current {pos, current iovec length, total used}
// triple as a savepoint.
func (o *Obuf) CreateSvp() ObufSvp {
	o.owner.check()
	svp := ObufSvp{pos: o.pos, used: o.used}
	if o.pos >= 0 {
		svp.iovUsed = o.iov[o.pos].used
	}
	return svp
}

// RollbackToSvp releases every iovec allocated after the savepoint and
// restores pos, the current iovec's length, and the total used count.
func (o *Obuf) RollbackToSvp(svp ObufSvp) {
	o.owner.check()
	for k := o.pos; k > svp.pos; k-- {
		o.releaseIov(o.iov[k])
		o.iov[k] = nil
	}
	o.pos = svp.pos
	if o.pos >= 0 {
		o.iov[o.pos].used = svp.iovUsed
	}
	o.used = svp.used
	o.pendingReserve = false
}

// Dup appends a copy of data to the buffer's tail, a direct port of
// obuf_dup. It returns the number of bytes copied (always len(data) on
// success, 0 on failure) and any error from the underlying Alloc.
func (o *Obuf) Dup(data []byte) (int, error) {
	o.owner.check()
	dst, err := o.Alloc(len(data))
	if err != nil {
		return 0, err
	}
	copy(dst, data)
	return len(data), nil
}

func (o *Obuf) releaseIov(iv *obufIovec) {
	if iv.s.large {
		o.cache.PutLarge(iv.s)
	} else {
		o.cache.PutWithOrder(iv.s)
	}
}

// Destroy releases every iovec back to the cache.
func (o *Obuf) Destroy() {
	o.owner.check()
	for k := 0; k <= o.pos; k++ {
		o.releaseIov(o.iov[k])
		o.iov[k] = nil
	}
	o.pos = -1
	o.used = 0
	o.pendingReserve = false
}
