package scanner

import (
	"fmt"

	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/services/indicators"
)

// Result is the outcome of one scan. Suppressed lists the kinds that could
// not be evaluated, each with a reason wrapping models.ErrInsufficientHistory.
type Result struct {
	Signals    []models.Signal
	Suppressed map[models.SignalKind]error
}

// Has reports whether a signal of kind fired.
func (r Result) Has(kind models.SignalKind) bool {
	for _, s := range r.Signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// SuppressedReasons renders Suppressed for logs and transport.
func (r Result) SuppressedReasons() map[models.SignalKind]string {
	if len(r.Suppressed) == 0 {
		return nil
	}
	out := make(map[models.SignalKind]string, len(r.Suppressed))
	for k, err := range r.Suppressed {
		out[k] = err.Error()
	}
	return out
}

// detector evaluates one signal kind at bar t.
type detector struct {
	kind  models.SignalKind
	ready func(s *Scanner, f *frame, t int) (bool, int)
	eval  func(s *Scanner, f *frame, t int) (models.Direction, float64, bool)
}

// Scanner turns a series and its indicators into signals.
type Scanner struct {
	cfg       Config
	engine    *indicators.Engine
	detectors []detector
}

func New(cfg Config, engine *indicators.Engine) *Scanner {
	s := &Scanner{cfg: cfg, engine: engine}
	s.detectors = []detector{
		{kind: models.KindReversal, ready: minBars(reversalMinBars), eval: evalReversal},
		{kind: models.KindMagicReversal, ready: minBars(magicMinBars), eval: evalMagicReversal},
		{kind: models.KindMACrossover, ready: minBars(crossoverMinBars), eval: evalCrossover},
		{kind: models.KindFiftyTwoWeekHigh, ready: minBars(highMinBars), eval: evalFiftyTwoWeekHigh},
		{kind: models.KindVolatilitySqueeze, ready: minBars(squeezeMinBars), eval: evalSqueeze},
		{kind: models.KindConfluence, ready: confluenceReady, eval: evalConfluence},
		{kind: models.KindDivergence, ready: minBars(divergenceMinBars), eval: evalDivergence},
		{kind: models.KindEWOTrend, ready: minBars(ewoTrendMinBars), eval: evalEWOTrend},
	}
	return s
}

func (s *Scanner) Config() Config { return s.cfg }

// Scan evaluates every detector on the most recent bar.
func (s *Scanner) Scan(series models.PriceSeries, set indicators.Set) Result {
	return s.ScanRecent(series, set, 1)
}

// ScanRecent evaluates every detector on each of the trailing n bars and
// reports every firing with the timestamp of the bar it fired on.
func (s *Scanner) ScanRecent(series models.PriceSeries, set indicators.Set, n int) Result {
	res := Result{Suppressed: map[models.SignalKind]error{}}
	if series.Empty() {
		for _, d := range s.detectors {
			res.Suppressed[d.kind] = fmt.Errorf("%s: no bars: %w", d.kind, models.ErrInsufficientHistory)
		}
		return res
	}
	if n < 1 {
		n = 1
	}
	f := newFrame(series, set)
	last := series.Len() - 1
	first := last - n + 1
	if first < 0 {
		first = 0
	}

	for _, d := range s.detectors {
		if ok, need := d.ready(s, f, last); !ok {
			res.Suppressed[d.kind] = fmt.Errorf("%s needs %d bars, have %d: %w", d.kind, need, series.Len(), models.ErrInsufficientHistory)
			continue
		}
		for t := first; t <= last; t++ {
			if ok, _ := d.ready(s, f, t); !ok {
				continue
			}
			dir, strength, fired := d.eval(s, f, t)
			if !fired {
				continue
			}
			res.Signals = append(res.Signals, models.Signal{
				Symbol:    series.Symbol,
				Kind:      d.kind,
				Timestamp: series.Bars[t].Date,
				Direction: dir,
				Strength:  strength,
			})
		}
	}
	return res
}

func minBars(need func(s *Scanner) int) func(*Scanner, *frame, int) (bool, int) {
	return func(s *Scanner, _ *frame, t int) (bool, int) {
		n := need(s)
		return t+1 >= n, n
	}
}

// frame caches the columns and derived series of one scan.
type frame struct {
	series                 models.PriceSeries
	set                    indicators.Set
	open, high, low, close []float64
	aux                    map[string][]float64
	weekly                 map[int]models.PriceSeries
}

func newFrame(series models.PriceSeries, set indicators.Set) *frame {
	return &frame{
		series: series,
		set:    set,
		open:   series.Opens(),
		high:   series.Highs(),
		low:    series.Lows(),
		close:  series.Closes(),
		aux:    map[string][]float64{},
	}
}

// derived returns a cached auxiliary series, building it on first use.
func (f *frame) derived(name string, build func() []float64) []float64 {
	if v, ok := f.aux[name]; ok {
		return v
	}
	v := build()
	f.aux[name] = v
	return v
}

// at returns x[t] if t is in range and the value is defined.
func at(x []float64, t int) (float64, bool) {
	if t < 0 || t >= len(x) {
		return 0, false
	}
	v := x[t]
	return v, indicators.IsDefined(v)
}
