package scanner

import (
	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/services/indicators"
)

func highMinBars(s *Scanner) int { return s.cfg.HighMinBars }

// evalFiftyTwoWeekHigh fires when the close is within tolerance of the
// trailing maximum close over up to HighWindow bars.
func evalFiftyTwoWeekHigh(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	window := s.cfg.HighWindow
	if t+1 < window {
		window = t + 1
	}
	high := f.close[t]
	for i := t - window + 1; i < t; i++ {
		if f.close[i] > high {
			high = f.close[i]
		}
	}
	if high <= 0 {
		return models.Neutral, 0, false
	}
	if f.close[t] >= (1-s.cfg.HighTolerance)*high {
		return models.Bullish, f.close[t] / high, true
	}
	return models.Neutral, 0, false
}

func crossoverMinBars(s *Scanner) int { return s.cfg.CrossoverPeriod + s.cfg.CrossoverWindow }

// evalCrossover fires when the close is on one side of the moving average
// now and was on the other side (or touching) at some bar of the window.
func evalCrossover(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	ma := f.derived("crossover_ma", func() []float64 { return indicators.SMA(f.close, s.cfg.CrossoverPeriod) })
	cur, ok := at(ma, t)
	if !ok || cur == 0 {
		return models.Neutral, 0, false
	}
	c := f.close[t]
	strength := (c - cur) / cur * 100

	var wasBelow, wasAbove bool
	for j := t - s.cfg.CrossoverWindow; j < t; j++ {
		m, ok := at(ma, j)
		if !ok {
			continue
		}
		if f.close[j] <= m {
			wasBelow = true
		}
		if f.close[j] >= m {
			wasAbove = true
		}
	}
	switch {
	case c > cur && wasBelow:
		return models.Bullish, strength, true
	case c < cur && wasAbove:
		return models.Bearish, strength, true
	}
	return models.Neutral, 0, false
}

func squeezeMinBars(s *Scanner) int {
	need := s.cfg.SqueezeMinBars
	if s.cfg.SqueezePeriod > need {
		need = s.cfg.SqueezePeriod
	}
	if a := s.engine.Config().ATRPeriod + 1; a > need {
		need = a
	}
	return need
}

// evalSqueeze fires when Bollinger width and ATR, both normalised by the
// middle band, sit below the configured quantile of their own history.
func evalSqueeze(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	width, atrNorm := squeezeSeries(s, f)
	w, ok1 := at(width, t)
	a, ok2 := at(atrNorm, t)
	if !ok1 || !ok2 {
		return models.Neutral, 0, false
	}
	from := t - s.cfg.SqueezeHistory + 1
	if from < 0 {
		from = 0
	}
	wq, ok1 := indicators.Quantile(width[from:t+1], s.cfg.SqueezeQuantile)
	aq, ok2 := indicators.Quantile(atrNorm[from:t+1], s.cfg.SqueezeQuantile)
	if !ok1 || !ok2 {
		return models.Neutral, 0, false
	}
	if w < wq && a < aq {
		return models.Neutral, (wq - w) / wq, true
	}
	return models.Neutral, 0, false
}

func squeezeSeries(s *Scanner, f *frame) ([]float64, []float64) {
	width := f.derived("bb_width_norm", func() []float64 {
		mid := indicators.SMA(f.close, s.cfg.SqueezePeriod)
		std := indicators.RollingStd(f.close, s.cfg.SqueezePeriod)
		out := indicators.NaNs(len(mid))
		for i := range mid {
			if indicators.IsDefined(mid[i]) && indicators.IsDefined(std[i]) && mid[i] != 0 {
				out[i] = 2 * s.cfg.SqueezeStdDev * std[i] / mid[i]
			}
		}
		return out
	})
	atrNorm := f.derived("atr_norm", func() []float64 {
		mid := indicators.SMA(f.close, s.cfg.SqueezePeriod)
		atr := f.set[indicators.ATR]
		out := indicators.NaNs(len(mid))
		for i := range mid {
			if indicators.IsDefined(mid[i]) && indicators.IsDefined(atr[i]) && mid[i] != 0 {
				out[i] = atr[i] / mid[i]
			}
		}
		return out
	})
	return width, atrNorm
}
