package features

import (
	"math"
	"time"

	"EdgeScan/internal/domain/models"
)

// Resample aggregates daily bars into tf. Weekly buckets end on Sunday and
// carry the date of their last daily bar, so a partial current week is
// never stamped with a future date.
func Resample(series models.PriceSeries, tf models.Timeframe) models.PriceSeries {
	if tf != models.TFWeekly || series.Empty() {
		return series
	}
	out := models.PriceSeries{Symbol: series.Symbol}
	var cur *models.PriceBar
	var curEnd time.Time
	for _, b := range series.Bars {
		end := weekEnding(b.Date)
		if cur == nil || !end.Equal(curEnd) {
			if cur != nil {
				out.Bars = append(out.Bars, *cur)
			}
			bar := b
			cur, curEnd = &bar, end
			continue
		}
		cur.Date = b.Date
		cur.High = nanMax(cur.High, b.High)
		cur.Low = nanMin(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume = nanSum(cur.Volume, b.Volume)
		if math.IsNaN(cur.Open) {
			cur.Open = b.Open
		}
	}
	if cur != nil {
		out.Bars = append(out.Bars, *cur)
	}
	return out
}

func weekEnding(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (7 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}

func nanMax(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Max(a, b)
}

func nanMin(a, b float64) float64 {
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	return math.Min(a, b)
}

func nanSum(a, b float64) float64 {
	if math.IsNaN(a) {
		a = 0
	}
	if math.IsNaN(b) {
		b = 0
	}
	return a + b
}
