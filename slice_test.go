// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestArena(t *testing.T) Arena {
	t.Helper()
	q := NewQuota(64 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)
	cache := NewSlabCache(arena, 4096)
	return NewRegion(cache).AsArena()
}

// TestSliceAppendWithArena tests the SliceAppend function using a
// Region-backed Arena.
func TestSliceAppendWithArena(t *testing.T) {
	a := newTestArena(t)

	s := MakeSlice[int](a, 3, 3)
	s[0] = 1
	s[1] = 2
	s[2] = 3

	data := []int{4, 5}

	result := SliceAppend[int](a, s, data...)

	expected := []int{1, 2, 3, 4, 5}

	require.Equal(t, expected, result)
}

func TestNewWithArena(t *testing.T) {
	a := newTestArena(t)
	p := New[struct{ X, Y int }](a)
	require.NotNil(t, p)
	p.X, p.Y = 1, 2
	require.Equal(t, 1, p.X)
}
