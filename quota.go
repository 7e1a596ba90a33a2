// SPDX-License-Identifier: Apache-2.0

package small

import "sync/atomic"

// UnitSize is the granularity at which Quota accounts memory. All requests
// to Use are rounded up to a multiple of UnitSize before being charged.
const UnitSize = 1024

// Quota is a byte budget shared between concurrent callers. It packs
// {used, total} into a single word and updates it with a CAS loop, so Use
// and Release are linearizable under concurrent access.
type Quota struct {
	word atomic.Uint64
}

// pack/unpack keep used and total each in their own 32-bit half of the
// word. 32 bits of UnitSize-denominated units address 4 TiB, comfortably
// above any single process quota.
func packQuota(used, total uint32) uint64 {
	return uint64(total)<<32 | uint64(used)
}

func unpackQuota(word uint64) (used, total uint32) {
	return uint32(word), uint32(word >> 32)
}

// NewQuota creates a quota with the given total byte budget.
func NewQuota(total int64) *Quota {
	q := &Quota{}
	q.Init(total)
	return q
}

// Init (re)initializes the quota with a fresh total and zero usage.
func (q *Quota) Init(total int64) {
	q.word.Store(packQuota(0, uint32(roundUpUnits(total))))
}

// Total returns the current total budget in bytes.
func (q *Quota) Total() int64 {
	_, total := unpackQuota(q.word.Load())
	return int64(total) * UnitSize
}

// Used returns the currently reserved amount in bytes.
func (q *Quota) Used() int64 {
	used, _ := unpackQuota(q.word.Load())
	return int64(used) * UnitSize
}

// Use attempts to reserve n bytes, rounded up to UnitSize. It returns the
// number of bytes actually granted (always a multiple of UnitSize and
// >= n) on success, or -1 if granting the request would push used past
// total.
func (q *Quota) Use(n int64) int64 {
	rounded := roundUpUnits(n)
	for {
		old := q.word.Load()
		used, total := unpackQuota(old)
		if uint64(used)+rounded > uint64(total) {
			return -1
		}
		next := packQuota(used+uint32(rounded), total)
		if q.word.CompareAndSwap(old, next) {
			return int64(rounded) * UnitSize
		}
	}
}

// Release gives back n bytes, rounded up to UnitSize the same way Use
// rounds. Callers must never release more than they were granted; doing so
// leaves used in an inconsistent (wrapped) state, by contract of the
// original allocator this package is modeled on.
func (q *Quota) Release(n int64) int64 {
	rounded := roundUpUnits(n)
	for {
		old := q.word.Load()
		used, total := unpackQuota(old)
		next := packQuota(used-uint32(rounded), total)
		if q.word.CompareAndSwap(old, next) {
			return int64(rounded) * UnitSize
		}
	}
}

// SetTotal changes the total budget. It is permitted even if the new total
// is below current usage: the quota enters an over-limit state in which
// Use fails until enough has been Released, while Release keeps working
// normally.
func (q *Quota) SetTotal(total int64) {
	rounded := uint32(roundUpUnits(total))
	for {
		old := q.word.Load()
		used, _ := unpackQuota(old)
		next := packQuota(used, rounded)
		if q.word.CompareAndSwap(old, next) {
			return
		}
	}
}

func roundUpUnits(n int64) uint64 {
	if n <= 0 {
		return 0
	}
	return uint64((n + UnitSize - 1) / UnitSize)
}
