// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegion(t *testing.T) *Region {
	t.Helper()
	q := NewQuota(64 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)
	cache := NewSlabCache(arena, 4096)
	return NewRegion(cache)
}

func TestRegionAllocAndTruncateToSavepoint(t *testing.T) {
	r := newTestRegion(t)

	a := r.Alloc(100)
	require.NotNil(t, a)
	for i := range a {
		a[i] = byte(i)
	}
	mark := r.Used()

	r.Alloc(200)
	r.Alloc(5000) // forces a new rslab
	require.NotEqual(t, mark, r.Used())

	r.Truncate(mark)
	assert.Equal(t, mark, r.Used())
	for i := range a {
		assert.Equal(t, byte(i), a[i])
	}
}

func TestRegionTruncateReleasesWholeSlabs(t *testing.T) {
	r := newTestRegion(t)
	r.Alloc(100)
	mark := r.Used()
	r.Alloc(8192) // spills into at least one more rslab
	require.Greater(t, len(r.slabs), 1)

	r.Truncate(mark)
	assert.Equal(t, 1, len(r.slabs))
}

func TestRegionReserveTwiceWithoutAllocPanics(t *testing.T) {
	r := newTestRegion(t)
	r.Reserve(16)
	assert.Panics(t, func() {
		r.Reserve(16)
	})
}

func TestRegionJoinWithinSingleSlab(t *testing.T) {
	r := newTestRegion(t)
	r.Alloc(10)
	r.Alloc(10)
	joined := r.Join(20)
	require.NotNil(t, joined)
	assert.Len(t, joined, 20)
}

func TestRegionJoinAcrossSlabs(t *testing.T) {
	r := newTestRegion(t)
	first := r.Alloc(4000)
	for i := range first {
		first[i] = 0xAB
	}
	second := r.Alloc(4000) // likely spills to a new rslab
	for i := range second {
		second[i] = 0xCD
	}

	joined := r.Join(8000)
	require.NotNil(t, joined)
	for i := 0; i < 4000; i++ {
		assert.Equal(t, byte(0xAB), joined[i])
	}
	for i := 4000; i < 8000; i++ {
		assert.Equal(t, byte(0xCD), joined[i])
	}
}

func TestRegionDestroyReleasesSlabs(t *testing.T) {
	r := newTestRegion(t)
	r.Alloc(100)
	r.Destroy()
	assert.Equal(t, int64(0), r.Used())
	assert.Empty(t, r.slabs)
}
