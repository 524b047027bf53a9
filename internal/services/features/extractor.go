package features

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"

	"EdgeScan/internal/domain/models"
)

type Config struct {
	RSWindow        int     `yaml:"rs_window" default:"21" validate:"gte=2"`
	ForecastWindow  int     `yaml:"forecast_window" default:"30" validate:"gte=3"`
	ForecastHorizon int     `yaml:"forecast_horizon" default:"5" validate:"gte=2"`
	ForecastMinBars int     `yaml:"forecast_min_bars" default:"40" validate:"gtefield=ForecastWindow"`
	RidgeAlpha      float64 `yaml:"ridge_alpha" default:"1" validate:"gte=0"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Extractor derives the numeric side inputs of the combiner from raw prices.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// PeriodReturn is (close[-1] - close[-window]) / close[-window].
func PeriodReturn(closes []float64, window int) (float64, error) {
	if window < 1 || len(closes) < window {
		return 0, fmt.Errorf("period return needs %d bars, have %d: %w", window, len(closes), models.ErrInsufficientHistory)
	}
	base := closes[len(closes)-window]
	last := closes[len(closes)-1]
	if base == 0 || math.IsNaN(base) || math.IsNaN(last) {
		return 0, fmt.Errorf("period return base %v: %w", base, models.ErrComputation)
	}
	return (last - base) / base, nil
}

// RelativeStrength is the stock's window return minus the benchmark's, in
// percentage points.
func (e *Extractor) RelativeStrength(stock, benchmark models.PriceSeries) (float64, error) {
	sr, err := PeriodReturn(stock.Closes(), e.cfg.RSWindow)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", stock.Symbol, err)
	}
	br, err := PeriodReturn(benchmark.Closes(), e.cfg.RSWindow)
	if err != nil {
		return 0, fmt.Errorf("benchmark %s: %w", benchmark.Symbol, err)
	}
	return (sr - br) * 100, nil
}

// ForecastSlope fits a ridge regression of close on bar index over the
// trailing window, projects it over the horizon and returns the projected
// move as a percentage of the last close.
func (e *Extractor) ForecastSlope(series models.PriceSeries) (float64, error) {
	closes := series.Closes()
	if len(closes) < e.cfg.ForecastMinBars {
		return 0, fmt.Errorf("forecast needs %d bars, have %d: %w", e.cfg.ForecastMinBars, len(closes), models.ErrInsufficientHistory)
	}
	y := closes[len(closes)-e.cfg.ForecastWindow:]
	_, beta := RidgeFit(y, e.cfg.RidgeAlpha)

	last := y[len(y)-1]
	if last == 0 {
		return 0, fmt.Errorf("forecast on zero close: %w", models.ErrComputation)
	}
	// the horizon's predictions differ only by the slope term
	move := beta * float64(e.cfg.ForecastHorizon-1)
	return move / last * 100, nil
}

// RidgeFit regresses y on x = 0..n-1 with an L2 penalty alpha on the slope
// only. Returns intercept and slope.
func RidgeFit(y []float64, alpha float64) (float64, float64) {
	n := float64(len(y))
	if n == 0 {
		return 0, 0
	}
	meanX := (n - 1) / 2
	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= n

	sxy, sxx := 0.0, 0.0
	for i, v := range y {
		dx := float64(i) - meanX
		sxy += dx * (v - meanY)
		sxx += dx * dx
	}
	beta := sxy / (sxx + alpha)
	return meanY - beta*meanX, beta
}

// LogReturns computes r_t = ln(C_t / C_{t-1}); non-positive prices yield 0.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the sample standard deviation of the last window
// returns, annualised with barsPerYear.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for a timeframe.
func BarsPerYear(tf models.Timeframe) float64 {
	if tf == models.TFWeekly {
		return 52
	}
	return 252
}
