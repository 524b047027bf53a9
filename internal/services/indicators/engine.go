package indicators

import (
	"fmt"

	"github.com/creasty/defaults"

	"EdgeScan/internal/domain/models"
)

// Indicator names in a Set.
const (
	FastMA   = "fast_ma"
	SlowMA   = "slow_ma"
	EWO      = "ewo"
	ATR      = "atr"
	RSI      = "rsi"
	StochK   = "stoch_k"
	StochD   = "stoch_d"
	Momentum = "momentum"
	BlueLine = "blue_line"
)

// rsiEpsilon keeps the relative strength finite when the average loss is
// zero, so RSI stays strictly below 100.
const rsiEpsilon = 1e-10

type Config struct {
	FastPeriod       int `yaml:"fast_period" default:"5" validate:"gte=1"`
	SlowPeriod       int `yaml:"slow_period" default:"35" validate:"gtfield=FastPeriod"`
	RSIPeriod        int `yaml:"rsi_period" default:"14" validate:"gte=2"`
	StochLength      int `yaml:"stoch_length" default:"14" validate:"gte=2"`
	KSmooth          int `yaml:"k_smooth" default:"3" validate:"gte=1"`
	DSmooth          int `yaml:"d_smooth" default:"3" validate:"gte=1"`
	ATRPeriod        int `yaml:"atr_period" default:"14" validate:"gte=1"`
	MomentumLookback int `yaml:"momentum_lookback" default:"5" validate:"gte=1"`
	BlueLinePeriod   int `yaml:"blue_line_period" default:"20" validate:"gte=1"`
}

// DefaultConfig returns the stock periods (5/35 EWO, RSI 14, 14/3/3 stochastic).
func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Set maps an indicator name to a series aligned index for index with the
// source bars. Warm-up positions hold Undefined.
type Set map[string][]float64

// At returns the value of name at bar i and whether it is defined.
func (s Set) At(name string, i int) (float64, bool) {
	series, ok := s[name]
	if !ok || i < 0 || i >= len(series) {
		return Undefined, false
	}
	v := series[i]
	return v, IsDefined(v)
}

// Latest returns the value of name at the last bar.
func (s Set) Latest(name string) (float64, bool) {
	return Last(s[name])
}

// Engine derives an indicator Set from a price series.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Compute returns a fresh Set for series. A missing close fails with
// models.ErrMissingField. A series shorter than a window leaves that
// indicator entirely undefined.
func (e *Engine) Compute(series models.PriceSeries) (Set, error) {
	if series.Empty() {
		return e.empty(0), nil
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	fast := SMA(closes, e.cfg.FastPeriod)
	slow := SMA(closes, e.cfg.SlowPeriod)
	ewo := NaNs(len(closes))
	for i := range closes {
		if IsDefined(fast[i]) && IsDefined(slow[i]) {
			ewo[i] = fast[i] - slow[i]
		}
	}

	rsi := e.rsi(closes)
	k, d := e.stochRSI(rsi)

	return Set{
		FastMA:   fast,
		SlowMA:   slow,
		EWO:      ewo,
		ATR:      SMA(TrueRange(highs, lows, closes), e.cfg.ATRPeriod),
		RSI:      rsi,
		StochK:   k,
		StochD:   d,
		Momentum: Diff(closes, e.cfg.MomentumLookback),
		BlueLine: SMA(closes, e.cfg.BlueLinePeriod),
	}, nil
}

func (e *Engine) empty(n int) Set {
	s := Set{}
	for _, name := range []string{FastMA, SlowMA, EWO, ATR, RSI, StochK, StochD, Momentum, BlueLine} {
		s[name] = NaNs(n)
	}
	return s
}

// rsi uses exponential averages of gains and losses with span = period.
func (e *Engine) rsi(closes []float64) []float64 {
	delta := Diff(closes, 1)
	gains := NaNs(len(delta))
	losses := NaNs(len(delta))
	for i, d := range delta {
		if !IsDefined(d) {
			continue
		}
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	// the undefined first change counts as no move, so both averages seed at 0
	if len(gains) > 0 {
		gains[0], losses[0] = 0, 0
	}
	avgGain := EMA(gains, e.cfg.RSIPeriod)
	avgLoss := EMA(losses, e.cfg.RSIPeriod)

	out := NaNs(len(closes))
	for i := e.cfg.RSIPeriod; i < len(closes); i++ {
		if !IsDefined(avgGain[i]) || !IsDefined(avgLoss[i]) {
			continue
		}
		rs := avgGain[i] / (avgLoss[i] + rsiEpsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// stochRSI normalises RSI within its own rolling range, then smooths twice.
func (e *Engine) stochRSI(rsi []float64) ([]float64, []float64) {
	lo := RollingMin(rsi, e.cfg.StochLength)
	hi := RollingMax(rsi, e.cfg.StochLength)
	raw := NaNs(len(rsi))
	for i := range rsi {
		if IsDefined(lo[i]) && IsDefined(hi[i]) {
			raw[i] = (rsi[i] - lo[i]) / (hi[i] - lo[i] + rsiEpsilon)
		}
	}
	k := SMA(raw, e.cfg.KSmooth)
	for i := range k {
		if IsDefined(k[i]) {
			k[i] *= 100
		}
	}
	return k, SMA(k, e.cfg.DSmooth)
}
