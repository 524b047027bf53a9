package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	"EdgeScan/internal/services/backtest"
	"EdgeScan/pkg/logger"
)

// BacktestRun replays the score log against prices that arrived later.
type BacktestRun struct {
	cfg     backtest.Config
	log     domrepo.ScoreLogReader
	prices  domrepo.PriceSupplier
	sink    domrepo.BacktestSink
	metrics domrepo.Metrics
	l       *logger.Logger
	now     func() time.Time
}

type BacktestRunParams struct {
	Config  backtest.Config
	Log     domrepo.ScoreLogReader
	Prices  domrepo.PriceSupplier
	Sink    domrepo.BacktestSink
	Metrics domrepo.Metrics
	Logger  *logger.Logger
}

func NewBacktestRun(p BacktestRunParams) *BacktestRun {
	l := p.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &BacktestRun{
		cfg:     p.Config,
		log:     p.Log,
		prices:  p.Prices,
		sink:    p.Sink,
		metrics: p.Metrics,
		l:       l,
		now:     time.Now,
	}
}

// Run evaluates with the configured lookahead and confidence floor.
func (r *BacktestRun) Run(ctx context.Context) (models.BacktestReport, error) {
	return r.RunWith(ctx, r.cfg)
}

// RunWith evaluates every logged entry under cfg and persists the records
// when a sink is configured. A symbol whose prices cannot be fetched counts
// as failed for each of its entries.
func (r *BacktestRun) RunWith(ctx context.Context, cfg backtest.Config) (models.BacktestReport, error) {
	start := time.Now()
	if cfg.BucketWidth <= 0 {
		cfg.BucketWidth = r.cfg.BucketWidth
	}
	entries, err := r.log.ReadAll(ctx)
	if err != nil {
		return models.BacktestReport{}, fmt.Errorf("read score log: %w", err)
	}
	if len(entries) == 0 {
		return models.BacktestReport{}, nil
	}

	earliest := map[string]time.Time{}
	for _, e := range entries {
		if t, ok := earliest[e.Symbol]; !ok || e.Timestamp.Before(t) {
			earliest[e.Symbol] = e.Timestamp
		}
	}
	symbols := make([]string, 0, len(earliest))
	for s := range earliest {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	prices := make(map[string]models.PriceSeries, len(symbols))
	missing := map[string]bool{}
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return models.BacktestReport{}, err
		}
		lookback := r.lookbackFor(earliest[sym])
		series, err := r.prices.GetPriceSeries(ctx, sym, lookback)
		if err != nil {
			r.metrics.RecordFailure(models.Reason(err))
			r.l.Warn("backtest prices", logger.Symbol(sym), logger.Error(err))
			missing[sym] = true
			continue
		}
		prices[sym] = series
	}

	var failed, filtered int
	usable := entries[:0:0]
	for _, e := range entries {
		switch {
		case !missing[e.Symbol]:
			usable = append(usable, e)
		case e.Confidence < cfg.MinConfidence:
			filtered++
		default:
			failed++
		}
	}
	report := backtest.NewEvaluator(cfg).Evaluate(usable, prices)
	report.Failed += failed
	report.Filtered += filtered
	if r.sink != nil && len(report.Records) > 0 {
		if err := r.sink.AppendBacktest(ctx, report.Records); err != nil {
			return report, fmt.Errorf("store backtest: %w", err)
		}
	}

	r.metrics.RecordLatency("backtest", time.Since(start).Seconds())
	r.l.Info("backtest finished",
		logger.Int("entries", len(entries)),
		logger.Int("evaluated", report.Evaluated),
		logger.Int("pending", report.Pending),
		logger.Int("filtered", report.Filtered),
		logger.Int("failed", report.Failed),
		logger.Float64("hit_rate", report.HitRate),
	)
	return report, nil
}

// lookbackFor covers the oldest entry of a symbol plus a week of slack.
func (r *BacktestRun) lookbackFor(since time.Time) int {
	days := int(math.Ceil(r.now().Sub(since).Hours()/24)) + 7
	if days < 7 {
		days = 7
	}
	return days
}
