package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA_WarmUpIsUndefined(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2.0, got[2], 1e-12)
	assert.InDelta(t, 4.0, got[4], 1e-12)
}

func TestSMA_GapRestartsWindow(t *testing.T) {
	got := SMA([]float64{1, 2, math.NaN(), 4, 5, 6}, 2)
	assert.InDelta(t, 1.5, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[3]))
	assert.InDelta(t, 4.5, got[4], 1e-12)
}

func TestSMA_ConstantWindowIsExact(t *testing.T) {
	x := make([]float64, 60)
	for i := range x {
		x[i] = 0.7
	}
	x = append(x, 1.3, 0.7)
	got := SMA(x, 5)
	for i := 4; i < 60; i++ {
		assert.Equal(t, 0.7, got[i], "sma at %d", i)
	}
	assert.InDelta(t, (4*0.7+1.3)/5, got[61], 1e-12)
}

func TestSMA_ShorterThanWindow(t *testing.T) {
	got := SMA([]float64{1, 2}, 5)
	require.Len(t, got, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
}

func TestRollingMaxMin(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5, 9, 2}
	mx := RollingMax(x, 3)
	mn := RollingMin(x, 3)
	assert.Equal(t, 4.0, mx[2])
	assert.Equal(t, 9.0, mx[6])
	assert.Equal(t, 1.0, mn[3])
	assert.Equal(t, 2.0, mn[6])
}

func TestEMA_SeedsWithFirstValue(t *testing.T) {
	got := EMA([]float64{math.NaN(), 10, 20}, 3)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 10.0, got[1])
	assert.InDelta(t, 15.0, got[2], 1e-12)
}

func TestTrueRange(t *testing.T) {
	tr := TrueRange([]float64{10, 12}, []float64{9, 11}, []float64{9.5, 11.5})
	assert.True(t, math.IsNaN(tr[0]))
	assert.InDelta(t, 2.5, tr[1], 1e-12)
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	q, ok := Quantile([]float64{4, 1, 3, 2, math.NaN(), 5}, 0.1)
	require.True(t, ok)
	assert.InDelta(t, 1.4, q, 1e-12)

	_, ok = Quantile([]float64{math.NaN()}, 0.5)
	assert.False(t, ok)
}
