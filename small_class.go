// SPDX-License-Identifier: Apache-2.0

package small

import (
	"math"
	"math/bits"
)

// SizeClass maps an allocation size to a small integer "offset" (and back),
// approximating a logarithmic scale with a configurable growth factor while
// staying branch-light enough for the allocation hot path. It ports the bit
// tricks of small_class_calc_offset_by_size/calc_size_by_offset verbatim,
// replacing the C implementation's float intrinsics with math.Log/math.Pow.
type SizeClass struct {
	granularity    uint32
	ignoreBitsCount uint32
	effectiveBits   uint32
	effectiveSize   uint32
	effectiveMask   uint32
	sizeShift       uint32
	sizeShiftPlus1  uint32
	actualFactor    float64
}

// NewSizeClass creates a classifier where every class size is a multiple of
// granularity (which must be a power of two), class sizes grow by
// approximately desiredFactor (in (1, 2]) once past the incremental region,
// and the smallest class size is minAlloc.
func NewSizeClass(granularity uint32, desiredFactor float64, minAlloc uint32) *SizeClass {
	if granularity == 0 || granularity&(granularity-1) != 0 {
		violation(nil, "small_class: granularity %d must be a power of two", granularity)
	}
	if desiredFactor <= 1 || desiredFactor > 2 {
		violation(nil, "small_class: desired_factor %v must be in (1, 2]", desiredFactor)
	}
	if minAlloc == 0 {
		violation(nil, "small_class: min_alloc must be greater than zero")
	}

	sc := &SizeClass{granularity: granularity}
	sc.ignoreBitsCount = uint32(bits.TrailingZeros32(granularity))
	log2 := math.Log(2)
	sc.effectiveBits = uint32(math.Log(log2/math.Log(desiredFactor))/log2 + 0.5)
	sc.effectiveSize = 1 << sc.effectiveBits
	sc.effectiveMask = sc.effectiveSize - 1
	sc.sizeShift = minAlloc - granularity
	sc.sizeShiftPlus1 = sc.sizeShift + 1
	sc.actualFactor = math.Pow(2, 1/math.Pow(2, float64(sc.effectiveBits)))
	return sc
}

// Granularity returns the configured class-size granularity.
func (sc *SizeClass) Granularity() uint32 { return sc.granularity }

// ActualFactor returns the growth factor this classifier actually achieves,
// which approximates but may not exactly equal the desiredFactor passed to
// NewSizeClass.
func (sc *SizeClass) ActualFactor() float64 { return sc.actualFactor }

// OffsetOf returns the zero-based class offset that size should be rounded
// up into: SizeOf(OffsetOf(s)) >= s for every s in [1, max class size].
func (sc *SizeClass) OffsetOf(size uint32) uint32 {
	checked := size - sc.sizeShiftPlus1
	if checked > size {
		size = 0
	} else {
		size = checked
	}
	size >>= sc.ignoreBitsCount

	if size < sc.effectiveSize {
		return size
	}
	log2 := fls(size >> sc.effectiveBits)
	linearPart := size >> log2
	log2Part := log2 << sc.effectiveBits
	return linearPart + log2Part
}

// SizeOf returns the class size (in bytes) of the given offset.
func (sc *SizeClass) SizeOf(offset uint32) uint32 {
	cls := offset + 1
	linearPart := cls & sc.effectiveMask
	log2 := cls >> sc.effectiveBits
	if log2 != 0 {
		log2--
		linearPart |= sc.effectiveSize
	}
	return sc.sizeShift + (linearPart << log2 << sc.ignoreBitsCount)
}

// fls returns the position of the most significant set bit of value.
// value must be non-zero.
func fls(value uint32) uint32 {
	return uint32(bits.Len32(value)) - 1
}
