package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(sym string, closes ...float64) models.PriceSeries {
	bars := make([]models.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = models.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return models.PriceSeries{Symbol: sym, Bars: bars}
}

func entry(sym string, day int, score, conf, price float64) models.ScoreLogEntry {
	return models.ScoreLogEntry{Symbol: sym, Timestamp: day0.AddDate(0, 0, day), Score: score, Confidence: conf, Price: price}
}

func TestEvaluateOne_TenPercentRoundTrip(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())
	// bars after day 0 are days 1..5, the fifth is day 5
	s := series("AAA", 100, 101, 102, 103, 104, 110)

	rec, err := ev.EvaluateOne(entry("AAA", 0, 70, 80, 100), s)
	require.NoError(t, err)
	assert.Equal(t, 110.0, rec.RealizedPrice)
	assert.Equal(t, 10.0, rec.RealizedReturnPct)
	assert.Equal(t, 5, rec.LookaheadDays)
	assert.Equal(t, day0, rec.SignalTimestamp)
}

func TestEvaluateOne_FutureNotYetAvailable(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())
	s := series("AAA", 100, 101, 102, 103, 104)

	_, err := ev.EvaluateOne(entry("AAA", 0, 70, 80, 100), s)
	assert.ErrorIs(t, err, models.ErrFutureDataNotYetAvailable)

	_, err = ev.EvaluateOne(entry("AAA", 0, 70, 80, 100), models.PriceSeries{})
	assert.ErrorIs(t, err, models.ErrFutureDataNotYetAvailable)
}

func TestEvaluateOne_UsesBarsStrictlyAfterSignal(t *testing.T) {
	ev := NewEvaluator(Config{LookaheadDays: 1, MinConfidence: 50, BucketWidth: 10})
	s := series("AAA", 100, 90, 80)

	rec, err := ev.EvaluateOne(entry("AAA", 1, 60, 60, 90), s)
	require.NoError(t, err)
	assert.Equal(t, 80.0, rec.RealizedPrice)
	assert.InDelta(t, -11.11, rec.RealizedReturnPct, 1e-9)
}

func TestEvaluateOne_BadPrice(t *testing.T) {
	_, err := NewEvaluator(DefaultConfig()).EvaluateOne(entry("AAA", 0, 1, 90, 0), series("AAA", 1, 2, 3, 4, 5, 6))
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestEvaluate_FiltersAndSummarises(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())
	prices := map[string]models.PriceSeries{
		"AAA": series("AAA", 100, 100, 100, 100, 100, 110, 120),
		"BBB": series("BBB", 50, 50, 50, 50, 50, 45),
	}
	entries := []models.ScoreLogEntry{
		entry("AAA", 0, 80, 95, 100), // +10
		entry("BBB", 0, 20, 55, 50),  // -10
		entry("AAA", 0, 99, 10, 100), // below confidence
		entry("AAA", 3, 50, 70, 100), // pending
		entry("CCC", 0, 50, 70, 100), // no prices
	}

	r := ev.Evaluate(entries, prices)
	assert.Equal(t, 2, r.Evaluated)
	assert.Equal(t, 1, r.Filtered)
	assert.Equal(t, 2, r.Pending)
	assert.Equal(t, 0, r.Failed)
	assert.InDelta(t, 0.0, r.MeanReturn, 1e-9)
	assert.Equal(t, 0.5, r.HitRate)
	assert.InDelta(t, 1.0, r.Correlation, 1e-9)

	require.Len(t, r.Buckets, 2)
	assert.Equal(t, 50.0, r.Buckets[0].Low)
	assert.Equal(t, 1, r.Buckets[0].Count)
	assert.Equal(t, 90.0, r.Buckets[1].Low)
	assert.Equal(t, 100.0, r.Buckets[1].High)
}

func TestEvaluate_ConfidenceOfHundredLandsInTopBucket(t *testing.T) {
	ev := NewEvaluator(DefaultConfig())
	r := ev.Evaluate(
		[]models.ScoreLogEntry{entry("AAA", 0, 80, 100, 100)},
		map[string]models.PriceSeries{"AAA": series("AAA", 100, 1, 1, 1, 1, 101)},
	)
	require.Len(t, r.Buckets, 1)
	assert.Equal(t, 90.0, r.Buckets[0].Low)
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, -1.0, Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, Pearson([]float64{1, 1}, []float64{1, 2}))
	assert.Equal(t, 0.0, Pearson([]float64{1}, []float64{1}))
}
