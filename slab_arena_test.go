// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSlabArenaRecyclesUnmappedSlabs implements the arena-recycling
// scenario: map A, map B, unmap A, map C. C must land on A's address (the
// recycle LIFO, not a fresh mapping), and quota usage must not grow past
// the two slabs already charged.
func TestSlabArenaRecyclesUnmappedSlabs(t *testing.T) {
	q := NewQuota(131072)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)

	a := arena.Map()
	require.NotNil(t, a)
	b := arena.Map()
	require.NotNil(t, b)
	assert.Equal(t, int64(131072), q.Used())

	arena.Unmap(a)
	c := arena.Map()
	require.NotNil(t, c)

	assert.Equal(t, a.addr(), c.addr())
	assert.Equal(t, int64(131072), q.Used())
}

func TestSlabArenaMapFailsWhenQuotaExhausted(t *testing.T) {
	q := NewQuota(MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)

	first := arena.Map()
	require.NotNil(t, first)

	second := arena.Map()
	assert.Nil(t, second)
}

func TestSlabArenaGetLargePutLargeRoundTripsQuota(t *testing.T) {
	q := NewQuota(4 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)

	s := arena.GetLarge(3 * MinSlabSize)
	require.NotNil(t, s)
	assert.True(t, s.large)
	assert.Equal(t, int64(3*MinSlabSize), q.Used())

	arena.PutLarge(s)
	assert.Equal(t, int64(0), q.Used())
}

func TestSlabArenaPrealloc(t *testing.T) {
	q := NewQuota(8 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate, WithPrealloc(2*MinSlabSize))

	assert.Equal(t, int64(2*MinSlabSize), q.Used())

	s1 := arena.Map()
	require.NotNil(t, s1)
	s2 := arena.Map()
	require.NotNil(t, s2)

	assert.Equal(t, int64(2*MinSlabSize), q.Used())
}
