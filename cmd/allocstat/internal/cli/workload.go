// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"

	"github.com/tarantool/small"
)

// workloadSizes spans a handful of size classes plus one large allocation,
// enough to populate several ClassStats rows and exercise the large-object
// fallback path.
var workloadSizes = []uint32{16, 24, 64, 256, 1024, 8192, 1 << 20}

// workload drives a SmallAlloc through a round of allocate/free churn so
// there is something non-trivial to report or export.
type workload struct {
	alloc *small.SmallAlloc
	live  [][]byte
	sizes []uint32
}

func newWorkload(alloc *small.SmallAlloc) *workload {
	return &workload{alloc: alloc}
}

// step allocates one object per size class, then frees every third
// previously held object, so both hot and cold pools stay populated
// across repeated calls. The size bookkeeping slice is grown through
// whatever Arena ctx carries (see InjectContextArena/ExtractContextArena);
// with no arena in ctx, SliceAppend/MakeSlice fall back to plain append/make.
func (w *workload) step(ctx context.Context) {
	arena := small.ExtractContextArena(ctx)

	for _, size := range workloadSizes {
		buf := w.alloc.Alloc(size)
		if buf == nil {
			continue
		}
		w.live = append(w.live, buf)
		w.sizes = small.SliceAppend(arena, w.sizes, size)
	}

	keptLive := w.live[:0]
	keptSizes := small.MakeSlice[uint32](arena, 0, len(w.sizes))
	for i := range w.live {
		if i%3 == 0 && i > 0 {
			w.alloc.Free(w.live[i], w.sizes[i])
			continue
		}
		keptLive = append(keptLive, w.live[i])
		keptSizes = small.SliceAppend(arena, keptSizes, w.sizes[i])
	}
	w.live = keptLive
	w.sizes = keptSizes
}
