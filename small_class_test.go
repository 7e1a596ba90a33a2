// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSizeClassRouting implements the "Small-alloc routing" scenario: a
// classifier with granularity=8, factor=1.3, min_alloc=16 must route sizes
// 16..24 into the same class, 25 into a strictly larger one, and must
// always round up (SizeOf(OffsetOf(s)) >= s).
func TestSizeClassRouting(t *testing.T) {
	sc := NewSizeClass(8, 1.3, 16)

	base := sc.OffsetOf(16)
	for size := uint32(17); size <= 24; size++ {
		assert.Equalf(t, base, sc.OffsetOf(size), "size %d should share class with 16", size)
	}
	assert.Greater(t, sc.OffsetOf(25), base)

	for size := uint32(1); size <= 4096; size++ {
		got := sc.SizeOf(sc.OffsetOf(size))
		assert.GreaterOrEqualf(t, got, size, "class size for %d rounded down", size)
	}
}

func TestSizeClassMonotonic(t *testing.T) {
	sc := NewSizeClass(16, 1.5, 16)
	prev := uint32(0)
	for offset := uint32(0); offset < 64; offset++ {
		size := sc.SizeOf(offset)
		assert.GreaterOrEqual(t, size, prev)
		prev = size
	}
}

func TestSizeClassInvalidGranularityPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSizeClass(3, 1.3, 16)
	})
}
