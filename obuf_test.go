// SPDX-License-Identifier: Apache-2.0

package small

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObuf(t *testing.T, startCapacity int) *Obuf {
	t.Helper()
	q := NewQuota(256 * MinSlabSize)
	arena := NewSlabArena(q, MinSlabSize, ArenaPrivate)
	cache := NewSlabCache(arena, 4096)
	return NewObuf(cache, startCapacity)
}

// TestObufRollback implements the "Obuf rollback" scenario: start_capacity
// 64, alloc 40 bytes, savepoint, alloc 200 more bytes (forcing a second
// iov), then roll back. used must return to 40 and pos to 0, and the
// second iov slot must be released.
func TestObufRollback(t *testing.T) {
	o := newTestObuf(t, 64)

	_, err := o.Alloc(40)
	require.NoError(t, err)
	svp := o.CreateSvp()

	_, err = o.Alloc(200)
	require.NoError(t, err)
	require.Equal(t, 1, o.pos)

	o.RollbackToSvp(svp)
	assert.Equal(t, int64(40), o.Used())
	assert.Equal(t, 0, o.Pos())
	assert.Nil(t, o.iov[1])
}

func TestObufReserveTwiceWithoutAllocPanics(t *testing.T) {
	o := newTestObuf(t, 64)
	_, err := o.Reserve(16)
	require.NoError(t, err)
	assert.Panics(t, func() {
		o.Reserve(16)
	})
}

func TestObufOverflowsPastMaxIovecs(t *testing.T) {
	o := newTestObuf(t, 16)
	var lastErr error
	for i := 0; i < MaxIovecs+5; i++ {
		// each alloc exceeds the previous iov's doubled capacity, so a
		// fresh iov is needed every time.
		_, err := o.Alloc(1 << uint(i+4))
		if err != nil {
			lastErr = err
			break
		}
	}
	assert.ErrorIs(t, lastErr, ErrIovecOverflow)
}

func TestObufDupCopiesIndependently(t *testing.T) {
	o := newTestObuf(t, 64)
	data := []byte("0123456789")

	n, err := o.Dup(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, int64(10), o.Used())

	data[0] = 'X'
	assert.Equal(t, byte('0'), o.iov[0].s.data()[0])
}
