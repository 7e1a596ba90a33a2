// SPDX-License-Identifier: Apache-2.0

package small

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuotaUseRounding(t *testing.T) {
	q := NewQuota(2048)
	require.EqualValues(t, 2048, q.Total())
	require.EqualValues(t, 1024, q.Use(700))
	require.EqualValues(t, 1024, q.Used())
}

func TestQuotaUseExhausted(t *testing.T) {
	q := NewQuota(1024)
	require.EqualValues(t, 1024, q.Use(1024))
	require.EqualValues(t, -1, q.Use(1))
}

func TestQuotaReleaseReusable(t *testing.T) {
	q := NewQuota(1024)
	require.EqualValues(t, 1024, q.Use(1024))
	require.EqualValues(t, 1024, q.Release(1024))
	require.EqualValues(t, 0, q.Used())
	require.EqualValues(t, 1024, q.Use(1024))
}

func TestQuotaSetTotalOverLimit(t *testing.T) {
	q := NewQuota(2048)
	require.EqualValues(t, 2048, q.Use(2048))
	q.SetTotal(1024)
	require.EqualValues(t, -1, q.Use(1))
	require.EqualValues(t, 2048, q.Release(2048))
	require.EqualValues(t, 1024, q.Use(1024))
}

// TestQuotaLinearizability races two goroutines on Use(700) against a
// 1-unit quota: each request rounds up to one unit, so exactly one wins.
func TestQuotaLinearizability(t *testing.T) {
	q := NewQuota(1024)
	results := make([]int64, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = q.Use(700)
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, r := range results {
		switch r {
		case 1024:
			wins++
		case -1:
			losses++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)
	require.EqualValues(t, 1024, q.Total())
}

func TestQuotaUsedNeverExceedsTotalUnderConcurrency(t *testing.T) {
	q := NewQuota(100 * UnitSize)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if q.Use(UnitSize) >= 0 {
					q.Release(UnitSize)
				}
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, q.Used(), q.Total())
}
