// SPDX-License-Identifier: Apache-2.0

package small

// ClassStats is one row of a SmallAlloc introspection walk: the
// accounting for a single size class's backing Mempool, mirroring
// small_class_stats from the original small_stats(3) API.
type ClassStats struct {
	ObjSize   int
	ObjCount  int
	SlabSize  int
	SlabCount int
	Stats     SlabStats
}

// AllocStats is the aggregate introspection snapshot returned by
// SmallAlloc.Stats: one ClassStats row per non-empty size class, plus the
// totals across the whole allocator (including the large-object
// fallback), per spec.md §6.
type AllocStats struct {
	Total   SlabStats
	Classes []ClassStats
}

// Stats walks every size-classed pool and returns a snapshot of current
// usage. Empty pools (no slabs currently mapped) are omitted, matching the
// original's small_stats callback contract of only visiting classes that
// have backing memory.
func (a *SmallAlloc) Stats() AllocStats {
	a.owner.check()

	out := AllocStats{Total: a.cache.Stats()}
	// The cache tracks only Total; Used is summed here from the pools and
	// the outstanding large allocations.
	out.Total.Used = 0
	for _, s := range a.largeIndex {
		out.Total.Used += int64(s.size)
	}
	for _, sp := range a.pools {
		ms := sp.pool.Stats()
		if ms.SlabCount == 0 {
			continue
		}
		out.Total.Used += ms.SlabStats.Used
		out.Classes = append(out.Classes, ClassStats{
			ObjSize:   ms.ObjSize,
			ObjCount:  ms.ObjCount,
			SlabSize:  ms.SlabSize,
			SlabCount: ms.SlabCount,
			Stats:     ms.SlabStats,
		})
	}
	return out
}
