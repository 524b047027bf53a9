package scanner

import (
	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/services/indicators"
)

func reversalMinBars(s *Scanner) int {
	ind := s.engine.Config()
	need := ind.ATRPeriod + 2*s.cfg.ReversalLookback
	if m := ind.MomentumLookback + 2; m > need {
		need = m
	}
	if l := s.cfg.ReversalLookback + 1; l > need {
		need = l
	}
	return need
}

func evalReversal(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	return reversalAt(s, f, t)
}

// reversalAt detects a momentum sign flip that breaks the prior lookback
// range on a confirming candle while ATR is elevated against its own mean.
func reversalAt(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	lookback := s.cfg.ReversalLookback
	mom := f.set[indicators.Momentum]
	atr := f.set[indicators.ATR]
	atrMean := f.derived("atr_mean", func() []float64 { return indicators.SMA(atr, 2*lookback) })
	priorLow := f.derived("prior_low", func() []float64 {
		return indicators.Shift(indicators.RollingMin(f.low, lookback), 1)
	})
	priorHigh := f.derived("prior_high", func() []float64 {
		return indicators.Shift(indicators.RollingMax(f.high, lookback), 1)
	})

	prevMom, ok1 := at(mom, t-1)
	curMom, ok2 := at(mom, t)
	a, ok3 := at(atr, t)
	am, ok4 := at(atrMean, t)
	if !ok1 || !ok2 || !ok3 || !ok4 || am <= 0 {
		return models.Neutral, 0, false
	}
	if a <= s.cfg.ReversalSensitivity*am {
		return models.Neutral, 0, false
	}
	strength := a / am

	if pl, ok := at(priorLow, t); ok &&
		prevMom < 0 && curMom > 0 && f.low[t] < pl && f.close[t] > f.open[t] {
		return models.Bullish, strength, true
	}
	if ph, ok := at(priorHigh, t); ok &&
		prevMom > 0 && curMom < 0 && f.high[t] > ph && f.close[t] < f.open[t] {
		return models.Bearish, strength, true
	}
	return models.Neutral, 0, false
}

func magicMinBars(s *Scanner) int {
	ind := s.engine.Config()
	need := ind.RSIPeriod + ind.StochLength + ind.KSmooth + ind.DSmooth - 1
	if s.cfg.TrendFilter && s.cfg.TrendPeriod > need {
		need = s.cfg.TrendPeriod
	}
	return need
}

// evalMagicReversal combines an RSI extreme, a %K/%D cross on this bar and
// an engulfing candle, optionally gated by the trend moving average.
func evalMagicReversal(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	if t < 1 {
		return models.Neutral, 0, false
	}
	rsi, ok1 := at(f.set[indicators.RSI], t)
	k1, ok2 := at(f.set[indicators.StochK], t)
	d1, ok3 := at(f.set[indicators.StochD], t)
	k0, ok4 := at(f.set[indicators.StochK], t-1)
	d0, ok5 := at(f.set[indicators.StochD], t-1)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return models.Neutral, 0, false
	}

	o1, c1 := f.open[t], f.close[t]
	o0, c0 := f.open[t-1], f.close[t-1]
	bullEngulf := c1 > o1 && c0 < o0 && c1 > o0 && o1 < c0
	bearEngulf := c1 < o1 && c0 > o0 && c1 < o0 && o1 > c0

	above, below := true, true
	if s.cfg.TrendFilter {
		trend := f.derived("trend_ma", func() []float64 { return indicators.SMA(f.close, s.cfg.TrendPeriod) })
		ma, ok := at(trend, t)
		if !ok {
			return models.Neutral, 0, false
		}
		above, below = c1 > ma, c1 < ma
	}

	strength := k1 - d1
	if rsi < s.cfg.RSIOversold && k1 > d1 && k0 <= d0 && bullEngulf && above {
		return models.Bullish, strength, true
	}
	if rsi > s.cfg.RSIOverbought && k1 < d1 && k0 >= d0 && bearEngulf && below {
		return models.Bearish, -strength, true
	}
	return models.Neutral, 0, false
}
