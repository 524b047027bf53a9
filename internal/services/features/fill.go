package features

import (
	"math"

	"EdgeScan/internal/domain/models"
)

// ForwardFill returns a copy of series where each missing OHLC field takes
// the last seen value of the same field. Gaps are never filled from later
// bars; leading gaps stay missing.
func ForwardFill(series models.PriceSeries) models.PriceSeries {
	out := models.PriceSeries{Symbol: series.Symbol, Bars: make([]models.PriceBar, len(series.Bars))}
	copy(out.Bars, series.Bars)
	for i := 1; i < len(out.Bars); i++ {
		prev := &out.Bars[i-1]
		b := &out.Bars[i]
		fill(&b.Open, prev.Open)
		fill(&b.High, prev.High)
		fill(&b.Low, prev.Low)
		fill(&b.Close, prev.Close)
		if math.IsNaN(b.Volume) {
			b.Volume = 0
		}
	}
	return out
}

func fill(v *float64, prev float64) {
	if math.IsNaN(*v) {
		*v = prev
	}
}
