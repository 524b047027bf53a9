package scanner

import (
	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/services/indicators"
)

func ewoTrendMinBars(s *Scanner) int { return s.engine.Config().SlowPeriod + 1 }

// evalEWOTrend: positive and rising is bullish, negative and falling is bearish.
func evalEWOTrend(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	ewo := f.set[indicators.EWO]
	cur, ok1 := at(ewo, t)
	prev, ok2 := at(ewo, t-1)
	if !ok1 || !ok2 {
		return models.Neutral, 0, false
	}
	switch {
	case cur > 0 && cur > prev:
		return models.Bullish, cur, true
	case cur < 0 && cur < prev:
		return models.Bearish, -cur, true
	}
	return models.Neutral, 0, false
}

func divergenceMinBars(s *Scanner) int {
	return s.engine.Config().SlowPeriod + s.cfg.DivergenceWindow
}

// evalDivergence fires when price prints a new window extreme that the
// oscillator refuses to confirm and is already turning away from.
func evalDivergence(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	ewo := f.set[indicators.EWO]
	window := s.cfg.DivergenceWindow
	cur, ok1 := at(ewo, t)
	prev, ok2 := at(ewo, t-1)
	if !ok1 || !ok2 {
		return models.Neutral, 0, false
	}

	priceLow, priceHigh := true, true
	ewoLow, ewoHigh := cur, cur
	for j := t - window + 1; j < t; j++ {
		if f.close[j] <= f.close[t] {
			priceLow = false
		}
		if f.close[j] >= f.close[t] {
			priceHigh = false
		}
		v, ok := at(ewo, j)
		if !ok {
			return models.Neutral, 0, false
		}
		if v < ewoLow {
			ewoLow = v
		}
		if v > ewoHigh {
			ewoHigh = v
		}
	}

	switch {
	case priceLow && cur > ewoLow && cur > prev:
		return models.Bullish, cur - ewoLow, true
	case priceHigh && cur < ewoHigh && cur < prev:
		return models.Bearish, ewoHigh - cur, true
	}
	return models.Neutral, 0, false
}
