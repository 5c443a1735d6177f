package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// testContext returns a context carrying a logger, as request and background
// contexts do in the server
func testContext() context.Context {
	return logging.With(context.Background(), logging.NewDevLogger())
}

func sampleLine() geo.Line {
	return geo.Line{
		{X: 0, Y: 0, M: 10},
		{X: 1, Y: 0, M: 0},
		{X: 2, Y: 0, M: 20},
	}
}

func TestResultCache_SetGet(t *testing.T) {
	c := NewResultCache(time.Minute)
	result := &mvalues.Result{Values: []float64{10, 15, 20}, Anchors: []int{0, 2}, Interpolated: 1}

	key := ResultKey(sampleLine(), mvalues.DefaultOptions())
	_, found := c.Get(key)
	assert.False(t, found, "Empty cache should miss")

	c.Set(key, result)
	cached, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, result, cached)

	// Cached copies are independent of the caller's result
	result.Values[1] = 999
	cached.Values[0] = -1
	again, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, []float64{10, 15, 20}, again.Values)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestResultCache_Expiry(t *testing.T) {
	c := NewResultCache(10 * time.Millisecond)
	c.Set("k", &mvalues.Result{Values: []float64{1}})
	assert.False(t, c.IsStale("k"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, c.IsStale("k"))
	_, found := c.Get("k")
	assert.False(t, found, "Stale entries are not served")

	assert.Equal(t, 1, c.Stats().StaleEntries)
	assert.Equal(t, 1, c.CleanupStale())
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestResultCache_DeleteAndClear(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.Set("a", &mvalues.Result{})
	c.Set("b", &mvalues.Result{})

	c.Delete("a")
	assert.True(t, c.IsStale("a"))
	assert.False(t, c.IsStale("b"))

	c.Clear()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestResultCache_PeriodicCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext())
	defer cancel()

	c := NewResultCache(5 * time.Millisecond)
	c.Set("k", &mvalues.Result{})
	c.StartPeriodicCleanup(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Stats().TotalEntries == 0
	}, time.Second, 10*time.Millisecond)
}

func TestResultKey(t *testing.T) {
	line := sampleLine()
	opts := mvalues.DefaultOptions()

	assert.Equal(t, ResultKey(line, opts), ResultKey(sampleLine(), opts), "Keys are deterministic")

	moved := sampleLine()
	moved[1].X = 1.5
	assert.NotEqual(t, ResultKey(line, opts), ResultKey(moved, opts), "Positions are part of the key")

	remeasured := sampleLine()
	remeasured[2].M = 21
	assert.NotEqual(t, ResultKey(line, opts), ResultKey(remeasured, opts), "M-values are part of the key")

	halfEven := mvalues.Options{Rounding: mvalues.RoundHalfEven, Unknown: mvalues.UnknownZero}
	assert.NotEqual(t, ResultKey(line, opts), ResultKey(line, halfEven), "Options are part of the key")
}
