// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLsRegion(t *testing.T, slabSize int) *LsRegion {
	t.Helper()
	q := NewQuota(64 * int64(slabSize))
	arena := NewSlabArena(q, slabSize, ArenaPrivate)
	return NewLsRegion(arena)
}

// TestLsRegionGC implements the "LsRegion GC" scenario: the requested
// 4096-byte slab is rounded up to MinSlabSize by the arena, two id=1
// allocations and one id=5 allocation all land in the same lslab, so gc(3)
// must free nothing and gc(5) must free everything, leaving exactly one
// empty lslab cached.
func TestLsRegionGC(t *testing.T) {
	l := newTestLsRegion(t, 4096)

	a := l.Alloc(1000, 1, 1)
	b := l.Alloc(1000, 1, 1)
	c := l.Alloc(1000, 1, 5)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	require.Len(t, l.slabs, 1)

	l.Gc(3)
	assert.Len(t, l.slabs, 1)

	l.Gc(5)
	assert.Empty(t, l.slabs)
	assert.NotNil(t, l.cachedSlab)
}

func TestLsRegionAllocSpillsToNewLslabOnDecreasingID(t *testing.T) {
	l := newTestLsRegion(t, 4096)

	l.Alloc(100, 1, 10)
	require.Len(t, l.slabs, 1)

	// a lower id than the current lslab's max forces a new lslab, even
	// though there's still room.
	l.Alloc(100, 1, 5)
	assert.Len(t, l.slabs, 2)
}

func TestLsRegionLargeAllocBypassesCache(t *testing.T) {
	l := newTestLsRegion(t, 4096)
	big := l.Alloc(2*MinSlabSize, 1, 1)
	require.NotNil(t, big)
	assert.True(t, l.slabs[0].s.large)

	l.Gc(1)
	assert.Nil(t, l.cachedSlab)
}

func TestLsRegionAllocRespectsAlignment(t *testing.T) {
	l := newTestLsRegion(t, 4096)

	l.Alloc(3, 1, 1) // throw off the tail offset from any natural alignment
	buf := l.Alloc(16, 64, 1)
	require.NotNil(t, buf)
	assert.Equal(t, uintptr(0), addrOf(buf)%64)
}

func TestLsRegionReserveDoesNotCommit(t *testing.T) {
	l := newTestLsRegion(t, 4096)

	buf := l.Reserve(100, 8)
	require.NotNil(t, buf)
	assert.Equal(t, int64(0), l.Used())

	committed := l.Alloc(100, 8, 1)
	require.NotNil(t, committed)
	assert.Equal(t, int64(100), l.Used())
}
