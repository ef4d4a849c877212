package flowpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMap_PreservesOrder tests that results land at the index of their
// originating input regardless of completion order.
func TestMap_PreservesOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	results := Map(context.Background(), items, 3, func(ctx context.Context, n int) int {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10
	})
	assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
}

// TestMap_EmptyInput tests that an empty slice returns an empty (non-nil
// length, zero length) result slice without invoking fn.
func TestMap_EmptyInput(t *testing.T) {
	called := false
	results := Map(context.Background(), []int{}, 3, func(ctx context.Context, n int) int {
		called = true
		return n
	})
	assert.Empty(t, results)
	assert.False(t, called)
}

// TestMap_RespectsParallelismLimit tests that no more than parallelism
// workers run concurrently.
func TestMap_RespectsParallelismLimit(t *testing.T) {
	var current, max int64
	items := make([]int, 20)

	Map(context.Background(), items, 4, func(ctx context.Context, n int) int {
		c := atomic.AddInt64(&current, 1)
		for {
			m := atomic.LoadInt64(&max)
			if c <= m || atomic.CompareAndSwapInt64(&max, m, c) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return n
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(4))
}

// TestMap_PanicRecovered tests that a panicking worker degrades to the
// zero value for that item instead of crashing the whole Map call.
func TestMap_PanicRecovered(t *testing.T) {
	items := []int{1, 2, 3}
	results := Map(context.Background(), items, 0, func(ctx context.Context, n int) int {
		if n == 2 {
			panic("worker exploded")
		}
		return n * 100
	})
	assert.Equal(t, []int{100, 0, 300}, results)
}

// TestMapErr_CollectsParallelErrors tests that MapErr reports both a
// result and an error per item in parallel, input-ordered slices.
func TestMapErr_CollectsParallelErrors(t *testing.T) {
	items := []int{1, 2, 3}
	failAt := errors.New("failed")
	results, errs := MapErr(context.Background(), items, 2, func(ctx context.Context, n int) (string, error) {
		if n == 2 {
			return "", failAt
		}
		return "ok", nil
	})

	require.Len(t, results, 3)
	require.Len(t, errs, 3)
	assert.Equal(t, "ok", results[0])
	assert.Equal(t, failAt, errs[1])
	assert.Nil(t, errs[0])
	assert.Equal(t, "ok", results[2])
}

// TestMap_ZeroParallelismRunsAllConcurrently tests that a parallelism of
// 0 doesn't bound concurrency at all (every item gets its own worker).
func TestMap_ZeroParallelismRunsAllConcurrently(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}
	results := Map(context.Background(), items, 0, func(ctx context.Context, n int) int {
		return n * n
	})
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
}
