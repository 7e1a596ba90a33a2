// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"go.uber.org/zap"

	"github.com/tarantool/small"
)

func newAllocator(cfg config, logger *zap.Logger) (*small.SmallAlloc, *small.Quota) {
	quota := small.NewQuota(cfg.QuotaBytes)
	arena := small.NewSlabArena(quota, cfg.ArenaSlabBytes, small.ArenaPrivate, small.WithArenaLogger(logger))
	cache := small.NewSlabCache(arena, cfg.CacheOrder0Bytes)

	alloc, actualFactor := small.NewSmallAlloc(cache, cfg.ObjSizeMinBytes, cfg.GranularityBytes, cfg.AllocFactor)
	logger.Info("allocator configured",
		zap.Float64("requested_factor", cfg.AllocFactor),
		zap.Float64("actual_factor", actualFactor),
		zap.Uint32("obj_size_max", alloc.ObjSizeMax()),
	)
	return alloc, quota
}

// newScratchArena builds a small Region-backed Arena of its own, independent
// of the allocator's cache, for the workload's own bookkeeping slices. It is
// handed to the workload through a context.Context rather than a
// constructor argument, so step can be called with or without one.
func newScratchArena(cfg config) small.Arena {
	q := small.NewQuota(int64(cfg.ArenaSlabBytes) * 4)
	arena := small.NewSlabArena(q, cfg.ArenaSlabBytes, small.ArenaPrivate)
	cache := small.NewSlabCache(arena, cfg.CacheOrder0Bytes)
	return small.NewRegion(cache).AsArena()
}
