// SPDX-License-Identifier: Apache-2.0

package small

import "sync/atomic"

// lockFreeLIFO is an ABA-safe concurrent stack of *slab. The real
// implementation this is modeled on (lf_lifo.c) packs a tag into spare low
// bits made available by slab-size alignment; Go's lack of raw tagged
// pointers makes that trick unsafe to replicate faithfully, so instead each
// push allocates a fresh cell, and the garbage collector never reuses a
// cell's address while any goroutine still holds it, so a CAS on the head
// can never succeed against a recycled cell. Each cell also records a
// monotonically increasing generation number; the CAS loops do not read it.
type lockFreeLIFO struct {
	head atomic.Pointer[lifoCell]
}

type lifoCell struct {
	s    *slab
	next *lifoCell
	gen  uint64
}

var lifoGen atomic.Uint64

func (l *lockFreeLIFO) push(s *slab) {
	cell := &lifoCell{s: s, gen: lifoGen.Add(1)}
	for {
		old := l.head.Load()
		cell.next = old
		if l.head.CompareAndSwap(old, cell) {
			return
		}
	}
}

func (l *lockFreeLIFO) pop() *slab {
	for {
		old := l.head.Load()
		if old == nil {
			return nil
		}
		if l.head.CompareAndSwap(old, old.next) {
			return old.s
		}
	}
}
