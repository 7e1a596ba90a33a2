// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMempool(t *testing.T, objSize int) (*Mempool, *SlabCache) {
	t.Helper()
	q := NewQuota(64 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)
	cache := NewSlabCache(arena, MinSlabSize)
	pool := NewMempoolWithOrder(cache, objSize, 0)
	return pool, cache
}

func TestMempoolAllocFreeRoundTrip(t *testing.T) {
	pool, _ := newTestMempool(t, 24)
	obj := pool.Alloc()
	require.NotNil(t, obj)
	assert.Len(t, obj, 24)
	pool.Free(obj)
}

// TestMempoolReuseAndSpare implements the "Mempool reuse and spare" scenario:
// a pool of object size 24, 10 objects allocated then freed in reverse
// order, should retain exactly one fully-empty slab as spare and leave the
// backing cache's total at exactly one slab.
func TestMempoolReuseAndSpare(t *testing.T) {
	pool, cache := newTestMempool(t, 24)

	objs := make([][]byte, 10)
	for i := range objs {
		objs[i] = pool.Alloc()
		require.NotNil(t, objs[i])
	}

	for i := len(objs) - 1; i >= 0; i-- {
		pool.Free(objs[i])
	}

	assert.NotNil(t, pool.spare)
	assert.Nil(t, pool.hot.Min())
	assert.Equal(t, int64(MinSlabSize), cache.Stats().Total)
}

func TestMempoolColdToHotPromotion(t *testing.T) {
	pool, _ := newTestMempool(t, 24)

	objCount := pool.objCount
	objs := make([][]byte, objCount)
	for i := range objs {
		objs[i] = pool.Alloc()
		require.NotNil(t, objs[i])
	}
	// slab is now full: not in hot tree.
	assert.Nil(t, pool.hot.Min())

	// free one object: slab should enter the cold list, not hot.
	pool.Free(objs[0])
	assert.Nil(t, pool.hot.Min())
	assert.False(t, pool.cold.empty())

	// free enough more to cross the 1/8 threshold and promote to hot.
	threshold := objCount >> maxColdFractionLB
	for i := 1; i < threshold; i++ {
		pool.Free(objs[i])
	}
	assert.NotNil(t, pool.hot.Min())
}

func TestMempoolOwningSlabRejectsForeignPointer(t *testing.T) {
	pool, _ := newTestMempool(t, 24)
	foreign := make([]byte, 24)
	assert.Nil(t, pool.OwningSlab(foreign))
}

func TestMempoolAllocPicksLowestAddressHotSlab(t *testing.T) {
	pool, _ := newTestMempool(t, 24)
	objCount := pool.objCount
	threshold := objCount >> maxColdFractionLB
	require.Greater(t, threshold, 0)

	first := make([][]byte, objCount)
	for i := range first {
		first[i] = pool.Alloc()
	}
	second := make([][]byte, objCount)
	for i := range second {
		second[i] = pool.Alloc()
	}
	firstKey := addrOf(first[0]) & pool.slabMask
	secondKey := addrOf(second[0]) & pool.slabMask
	require.NotEqual(t, firstKey, secondKey)

	// cross the cold->hot threshold on both slabs, higher-addressed one
	// (second) first, so the tree must still prefer the lower address.
	for i := 0; i < threshold; i++ {
		pool.Free(second[i])
	}
	for i := 0; i < threshold; i++ {
		pool.Free(first[i])
	}

	wantKey := firstKey
	if secondKey < firstKey {
		wantKey = secondKey
	}
	next := pool.Alloc()
	assert.Equal(t, wantKey, addrOf(next)&pool.slabMask)
}

func TestMempoolDestroyReleasesAllSlabs(t *testing.T) {
	pool, cache := newTestMempool(t, 24)
	for i := 0; i < pool.objCount+1; i++ {
		require.NotNil(t, pool.Alloc())
	}
	pool.Destroy()
	assert.Equal(t, int64(0), cache.Stats().Total)
}

// TestMempoolDestroyWithSpareReleasesItOnlyOnce guards against
// double-releasing a retired spare slab: Destroy must not both return
// pool.spare to the cache explicitly and again via the index walk, since
// that would let the cache hand the same physical slab out twice.
func TestMempoolDestroyWithSpareReleasesItOnlyOnce(t *testing.T) {
	pool, cache := newTestMempool(t, 24)

	objs := make([][]byte, pool.objCount)
	for i := range objs {
		objs[i] = pool.Alloc()
		require.NotNil(t, objs[i])
	}
	for i := range objs {
		pool.Free(objs[i])
	}
	require.NotNil(t, pool.spare)
	require.Equal(t, int64(MinSlabSize), cache.Stats().Total)

	pool.Destroy()

	// A double-release of the spare slab would subtract its size from
	// cache.Stats().Total twice, driving it negative instead of to zero.
	assert.Equal(t, int64(0), cache.Stats().Total)
}
