package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	domsvc "EdgeScan/internal/domain/service"
	"EdgeScan/internal/services/features"
	"EdgeScan/internal/services/indicators"
	"EdgeScan/internal/services/scanner"
	"EdgeScan/internal/services/scoring"
	"EdgeScan/internal/services/signals"
	"EdgeScan/pkg/logger"
)

// ScanConfig is the scan section of the application config.
type ScanConfig struct {
	Symbols       []string      `yaml:"symbols"`
	Benchmark     string        `yaml:"benchmark" default:"SPY"`
	LookbackDays  int           `yaml:"lookback_days" default:"400" validate:"gte=60"`
	Workers       int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	SymbolTimeout time.Duration `yaml:"symbol_timeout" default:"30s"`
	VolWindow     int           `yaml:"vol_window" default:"21" validate:"gte=2"`
}

func DefaultScanConfig() ScanConfig {
	var c ScanConfig
	_ = defaults.Set(&c)
	return c
}

// AnalyzeOptions tunes a single analysis. Zero values fall back to the
// pipeline configuration.
type AnalyzeOptions struct {
	Benchmark    string
	LookbackDays int
	RecentBars   int
	Timeframe    models.Timeframe
}

// EdgePipeline runs one symbol through indicators, detectors, the signal
// book and the combiner.
type EdgePipeline struct {
	cfg       ScanConfig
	prices    domrepo.PriceSupplier
	model     domsvc.EdgeModel
	engine    *indicators.Engine
	scanner   *scanner.Scanner
	extractor *features.Extractor
	combiner  *scoring.Combiner
	metrics   domrepo.Metrics
	l         *logger.Logger
}

func NewEdgePipeline(
	cfg ScanConfig,
	prices domrepo.PriceSupplier,
	model domsvc.EdgeModel,
	engine *indicators.Engine,
	sc *scanner.Scanner,
	extractor *features.Extractor,
	combiner *scoring.Combiner,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *EdgePipeline {
	if l == nil {
		l = logger.Nop()
	}
	return &EdgePipeline{
		cfg:       cfg,
		prices:    prices,
		model:     model,
		engine:    engine,
		scanner:   sc,
		extractor: extractor,
		combiner:  combiner,
		metrics:   metrics,
		l:         l,
	}
}

func (p *EdgePipeline) Config() ScanConfig { return p.cfg }

// Analyze scores symbol against benchmark on daily bars.
func (p *EdgePipeline) Analyze(ctx context.Context, symbol, benchmark string) (models.SymbolAnalysis, error) {
	return p.AnalyzeWith(ctx, symbol, AnalyzeOptions{Benchmark: benchmark})
}

// AnalyzeWith fetches the symbol and its benchmark and analyses them. A
// failed benchmark fetch only drops relative strength.
func (p *EdgePipeline) AnalyzeWith(ctx context.Context, symbol string, opts AnalyzeOptions) (models.SymbolAnalysis, error) {
	opts = p.withDefaults(opts)
	series, err := p.fetch(ctx, symbol, opts.LookbackDays)
	if err != nil {
		return models.SymbolAnalysis{}, err
	}
	bench, benchErr := p.benchmark(ctx, symbol, opts)
	return p.analyzeSeries(ctx, series, bench, benchErr, opts)
}

func (p *EdgePipeline) withDefaults(o AnalyzeOptions) AnalyzeOptions {
	if o.Benchmark == "" {
		o.Benchmark = p.cfg.Benchmark
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = p.cfg.LookbackDays
	}
	if o.RecentBars <= 0 {
		o.RecentBars = p.scanner.Config().RecentBars
	}
	o.Timeframe = models.NormalizeTimeframe(string(o.Timeframe))
	return o
}

func (p *EdgePipeline) fetch(ctx context.Context, symbol string, lookback int) (models.PriceSeries, error) {
	start := time.Now()
	series, err := p.prices.GetPriceSeries(ctx, symbol, lookback)
	p.metrics.RecordLatency("fetch_prices", time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("fetch prices: %w", ctxErr)
		} else {
			err = fmt.Errorf("fetch prices: %v: %w", err, models.ErrDataUnavailable)
		}
		return models.PriceSeries{}, &models.SymbolError{Symbol: symbol, Err: err}
	}
	if series.Empty() {
		return models.PriceSeries{}, &models.SymbolError{Symbol: symbol, Err: fmt.Errorf("no bars: %w", models.ErrDataUnavailable)}
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	return series, nil
}

func (p *EdgePipeline) benchmark(ctx context.Context, symbol string, opts AnalyzeOptions) (*models.PriceSeries, error) {
	if opts.Benchmark == "" || strings.EqualFold(opts.Benchmark, symbol) {
		return nil, nil
	}
	b, err := p.fetch(ctx, opts.Benchmark, opts.LookbackDays)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// analyzeSeries does the pure part of the work. bench may be nil.
func (p *EdgePipeline) analyzeSeries(ctx context.Context, series models.PriceSeries, bench *models.PriceSeries, benchErr error, opts AnalyzeOptions) (models.SymbolAnalysis, error) {
	start := time.Now()
	symbol := series.Symbol
	fail := func(err error) (models.SymbolAnalysis, error) {
		return models.SymbolAnalysis{}, &models.SymbolError{Symbol: symbol, Err: err}
	}

	series = features.ForwardFill(series)
	if opts.Timeframe == models.TFWeekly {
		series = features.Resample(series, models.TFWeekly)
	}
	set, err := p.engine.Compute(series)
	if err != nil {
		return fail(fmt.Errorf("indicators: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res := p.scanner.ScanRecent(series, set, opts.RecentBars)
	book := signals.NewBook()
	book.Add(res.Signals...)
	sigs := book.ForSymbol(symbol)
	for _, s := range sigs {
		p.metrics.RecordSignal(s.Kind, s.Direction)
	}

	last, ok := series.Last()
	if !ok {
		return fail(fmt.Errorf("no bars: %w", models.ErrDataUnavailable))
	}
	out := models.SymbolAnalysis{
		Symbol:     symbol,
		Timestamp:  last.Date,
		Price:      last.Close,
		Signals:    sigs,
		Suppressed: res.SuppressedReasons(),
		Errors:     map[string]string{},
	}
	in := scoring.Inputs{
		Symbol:     symbol,
		AsOf:       last.Date,
		Price:      last.Close,
		Signals:    sigs,
		Suppressed: res.Suppressed,
	}

	if slope, err := p.extractor.ForecastSlope(series); err == nil {
		in.ForecastSlope = &slope
	} else {
		out.Errors[scoring.LabelForecastSlope] = err.Error()
	}

	switch {
	case benchErr != nil:
		out.Errors[scoring.LabelRelativeStrength] = benchErr.Error()
	case bench != nil:
		b := features.ForwardFill(*bench)
		if opts.Timeframe == models.TFWeekly {
			b = features.Resample(b, models.TFWeekly)
		}
		if rs, err := p.extractor.RelativeStrength(series, b); err == nil {
			in.RelativeStrength = &rs
		} else {
			out.Errors[scoring.LabelRelativeStrength] = err.Error()
		}
	}

	pred, err := p.model.Predict(ctx, symbol, p.featureVector(series, set, in, opts.Timeframe))
	switch {
	case err == nil:
		in.PredictedScore = &pred.Score
		in.Confidence = &pred.Confidence
	case errors.Is(err, models.ErrDataUnavailable):
	default:
		out.Errors[scoring.LabelPredicted] = err.Error()
		p.l.Warn("edge model unavailable", logger.Symbol(symbol), logger.Error(err))
	}

	score := p.combiner.Score(in)
	out.Score = &score
	if len(out.Errors) == 0 {
		out.Errors = nil
	}

	p.metrics.RecordScan(symbol, time.Since(start).Seconds())
	p.metrics.RecordScore(symbol, score.Score)
	return out, nil
}

// featureVector is what the external model sees. Undefined indicators are
// left out.
func (p *EdgePipeline) featureVector(series models.PriceSeries, set indicators.Set, in scoring.Inputs, tf models.Timeframe) map[string]float64 {
	f := map[string]float64{}
	for _, name := range []string{indicators.RSI, indicators.EWO, indicators.StochK, indicators.StochD, indicators.Momentum} {
		if v, ok := set.Latest(name); ok {
			f[name] = v
		}
	}
	if atr, ok := set.Latest(indicators.ATR); ok && in.Price > 0 {
		f["atr_pct"] = atr / in.Price * 100
	}
	if in.ForecastSlope != nil {
		f[scoring.LabelForecastSlope] = *in.ForecastSlope
	}
	if in.RelativeStrength != nil {
		f[scoring.LabelRelativeStrength] = *in.RelativeStrength
	}
	if rets := features.LogReturns(series.Closes()); len(rets) >= p.cfg.VolWindow {
		f["volatility"] = features.RealizedVolatility(rets, p.cfg.VolWindow, features.BarsPerYear(tf))
	}

	switch scoring.Tier(in.Signals) {
	case models.RiskLow:
		f["reversal"] = 1
	case models.RiskHigh:
		f["reversal"] = -1
	default:
		f["reversal"] = 0
	}
	f["squeeze"] = flag(in.Signals, models.KindVolatilitySqueeze, in.AsOf)
	f["confluence"] = flag(in.Signals, models.KindConfluence, in.AsOf)
	return f
}

func flag(sigs []models.Signal, kind models.SignalKind, ts time.Time) float64 {
	for _, s := range sigs {
		if s.Kind == kind && s.Timestamp.Equal(ts) {
			return 1
		}
	}
	return 0
}
