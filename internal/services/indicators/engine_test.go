package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesFromCloses(closes []float64) models.PriceSeries {
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return models.PriceSeries{Symbol: "TEST", Bars: bars}
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCompute_FlatSeriesHasZeroEWOAndATR(t *testing.T) {
	for _, level := range []float64{100, 100.1, 33.3, 0.7, 123.456} {
		series := seriesFromCloses(flat(300, level))
		for i := range series.Bars {
			series.Bars[i].High = level
			series.Bars[i].Low = level
		}

		set, err := NewEngine(DefaultConfig()).Compute(series)
		require.NoError(t, err)

		defined := 0
		for i := range series.Bars {
			if v, ok := set.At(EWO, i); ok {
				defined++
				assert.Equal(t, 0.0, v, "ewo at %d for level %v", i, level)
			}
			if v, ok := set.At(ATR, i); ok {
				assert.Equal(t, 0.0, v, "atr at %d for level %v", i, level)
			}
			if v, ok := set.At(SlowMA, i); ok {
				assert.Equal(t, level, v, "slow ma at %d for level %v", i, level)
			}
		}
		assert.Equal(t, 300-34, defined, "level %v", level)
	}
}

func TestCompute_RSISeedsAtZeroOnFirstBar(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	set, err := NewEngine(DefaultConfig()).Compute(seriesFromCloses(closes))
	require.NoError(t, err)

	// gains: 0 at bar 0, then 1 per bar; losses stay 0
	alpha := 2.0 / 15
	avgGain := 0.0
	for i := 1; i <= 14; i++ {
		avgGain = alpha*1 + (1-alpha)*avgGain
	}
	want := 100 - 100/(1+avgGain/rsiEpsilon)
	got, ok := set.At(RSI, 14)
	require.True(t, ok)
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 1-math.Pow(1-alpha, 14), avgGain, 1e-12)
}

func TestCompute_MonotonicSeriesKeepsRSIBelow100(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	set, err := NewEngine(DefaultConfig()).Compute(seriesFromCloses(closes))
	require.NoError(t, err)

	for i := range closes {
		v, ok := set.At(RSI, i)
		if i < 14 {
			assert.False(t, ok, "rsi defined during warm-up at %d", i)
			continue
		}
		require.True(t, ok)
		assert.Less(t, v, 100.0)
		assert.Greater(t, v, 99.0)
	}
}

func TestCompute_ShortSeriesLeavesEWOUndefined(t *testing.T) {
	set, err := NewEngine(DefaultConfig()).Compute(seriesFromCloses(flat(30, 10)))
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		_, ok := set.At(EWO, i)
		assert.False(t, ok)
	}
	_, ok := set.Latest(FastMA)
	assert.True(t, ok)
}

func TestCompute_EmptySeries(t *testing.T) {
	set, err := NewEngine(DefaultConfig()).Compute(models.PriceSeries{Symbol: "NONE"})
	require.NoError(t, err)
	assert.Empty(t, set[EWO])
}

func TestCompute_MissingCloseFails(t *testing.T) {
	series := seriesFromCloses(flat(40, 10))
	series.Bars[12].Close = math.NaN()

	_, err := NewEngine(DefaultConfig()).Compute(series)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrMissingField)
}

func TestCompute_InfiniteValueFails(t *testing.T) {
	series := seriesFromCloses(flat(40, 10))
	series.Bars[3].High = math.Inf(1)

	_, err := NewEngine(DefaultConfig()).Compute(series)
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestCompute_MomentumAndBlueLine(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(i)
	}
	set, err := NewEngine(DefaultConfig()).Compute(seriesFromCloses(closes))
	require.NoError(t, err)

	m, ok := set.Latest(Momentum)
	require.True(t, ok)
	assert.Equal(t, 5.0, m)

	bl, ok := set.Latest(BlueLine)
	require.True(t, ok)
	assert.InDelta(t, 29.5, bl, 1e-9)

	_, ok = set.At(BlueLine, 18)
	assert.False(t, ok)
}

func TestStochRSI_BoundedWhenDefined(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/5)
	}
	set, err := NewEngine(DefaultConfig()).Compute(seriesFromCloses(closes))
	require.NoError(t, err)

	for i := range closes {
		for _, name := range []string{StochK, StochD} {
			if v, ok := set.At(name, i); ok {
				assert.GreaterOrEqual(t, v, -1e-9)
				assert.LessOrEqual(t, v, 100+1e-9)
			}
		}
	}
	_, ok := set.Latest(StochD)
	assert.True(t, ok)
}
