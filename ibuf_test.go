// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIbuf(t *testing.T, startCapacity int) *Ibuf {
	t.Helper()
	q := NewQuota(256 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)
	cache := NewSlabCache(arena, 4096)
	return NewIbuf(cache, startCapacity)
}

func TestIbufAllocGrowsAndPreservesData(t *testing.T) {
	b := newTestIbuf(t, 64)

	first := b.Alloc(10)
	require.NotNil(t, first)
	copy(first, []byte("0123456789"))
	assert.Equal(t, 10, b.Used())

	second := b.Alloc(5000) // outgrows the first 4096-byte slab: forces reallocation
	require.NotNil(t, second)
	assert.Equal(t, 5010, b.Used())
	assert.Equal(t, "0123456789", string(b.s.data()[b.rpos:b.rpos+10]))
}

func TestIbufShrinkReleasesWhenEmpty(t *testing.T) {
	b := newTestIbuf(t, 64)
	b.Alloc(500)
	b.rpos = b.wpos
	b.Shrink()
	assert.Equal(t, 0, b.Capacity())
}

func TestIbufShrinkKeepsDataAboveStartCapacity(t *testing.T) {
	b := newTestIbuf(t, 1024)
	b.Alloc(10000)
	b.rpos += 9000 // 1000 bytes still unconsumed
	b.Shrink()
	assert.GreaterOrEqual(t, b.Capacity(), b.Used())
	assert.GreaterOrEqual(t, b.Capacity(), 1024)
}

func TestIbufDiscardRewindsWpos(t *testing.T) {
	b := newTestIbuf(t, 64)
	b.Alloc(10)
	tail := b.Alloc(16)
	copy(tail, []byte("discard me please"))
	require.Equal(t, 26, b.Used())

	b.Discard(16)
	assert.Equal(t, 10, b.Used())

	assert.Panics(t, func() {
		b.Discard(b.Used() + 1)
	})
}

func TestIbufTruncateStableAcrossReallocation(t *testing.T) {
	b := newTestIbuf(t, 64)
	b.Alloc(10)
	b.rpos += 10
	hello := b.Alloc(16)
	copy(hello, []byte("Hello Hello\x00"))
	mark := b.Used()

	b.Alloc(100)
	b.Truncate(mark)
	assert.Equal(t, mark, b.Used())
	assert.Equal(t, byte('H'), b.s.data()[b.rpos])

	// now force a reallocation, then truncate back to the same mark.
	b.Alloc(32 * 1024)
	b.Truncate(mark)
	assert.Equal(t, mark, b.Used())
	assert.Equal(t, byte('H'), b.s.data()[b.rpos])
}
