package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/creasty/defaults"
	"github.com/shopspring/decimal"

	"EdgeScan/internal/domain/models"
)

type Config struct {
	LookaheadDays int     `yaml:"lookahead_days" default:"5" validate:"gte=1"`
	MinConfidence float64 `yaml:"min_confidence" default:"50" validate:"gte=0,lte=100"`
	BucketWidth   float64 `yaml:"bucket_width" default:"10" validate:"gt=0,lte=100"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Evaluator replays logged scores against prices that arrived later.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Config() Config { return e.cfg }

// EvaluateOne measures the close LookaheadDays bars after the entry's bar.
// It returns models.ErrFutureDataNotYetAvailable when those bars do not
// exist yet.
func (e *Evaluator) EvaluateOne(entry models.ScoreLogEntry, series models.PriceSeries) (models.BacktestRecord, error) {
	if entry.Price <= 0 || math.IsNaN(entry.Price) {
		return models.BacktestRecord{}, fmt.Errorf("%s price at signal %v: %w", entry.Symbol, entry.Price, models.ErrComputation)
	}
	start := series.IndexAfter(entry.Timestamp)
	target := start + e.cfg.LookaheadDays - 1
	if target >= series.Len() {
		return models.BacktestRecord{}, fmt.Errorf("%s %s: %d of %d bars: %w",
			entry.Symbol, entry.Timestamp.Format("2006-01-02"), series.Len()-start, e.cfg.LookaheadDays, models.ErrFutureDataNotYetAvailable)
	}
	future := series.Bars[target].Close
	if math.IsNaN(future) {
		return models.BacktestRecord{}, fmt.Errorf("%s future close: %w", entry.Symbol, models.ErrMissingField)
	}
	ret := (future - entry.Price) / entry.Price * 100

	return models.BacktestRecord{
		Symbol:            entry.Symbol,
		SignalTimestamp:   entry.Timestamp,
		PredictedScore:    entry.Score,
		Confidence:        entry.Confidence,
		PriceAtSignal:     entry.Price,
		LookaheadDays:     e.cfg.LookaheadDays,
		RealizedPrice:     future,
		RealizedReturnPct: decimal.NewFromFloat(ret).Round(2).InexactFloat64(),
	}, nil
}

// Evaluate runs every entry at or above MinConfidence against prices keyed
// by symbol. Entries without enough future bars are counted as pending and
// left for a later run.
func (e *Evaluator) Evaluate(entries []models.ScoreLogEntry, prices map[string]models.PriceSeries) models.BacktestReport {
	var report models.BacktestReport
	for _, entry := range entries {
		if entry.Confidence < e.cfg.MinConfidence {
			report.Filtered++
			continue
		}
		rec, err := e.EvaluateOne(entry, prices[entry.Symbol])
		switch {
		case errors.Is(err, models.ErrFutureDataNotYetAvailable):
			report.Pending++
		case err != nil:
			report.Failed++
		default:
			report.Records = append(report.Records, rec)
		}
	}
	e.summarise(&report)
	return report
}

func (e *Evaluator) summarise(r *models.BacktestReport) {
	r.Evaluated = len(r.Records)
	if r.Evaluated == 0 {
		return
	}
	scores := make([]float64, r.Evaluated)
	returns := make([]float64, r.Evaluated)
	for i, rec := range r.Records {
		scores[i] = rec.PredictedScore
		returns[i] = rec.RealizedReturnPct
	}
	r.MeanReturn, r.HitRate = meanAndHitRate(returns)
	r.Correlation = Pearson(scores, returns)
	r.Buckets = e.buckets(r.Records)
}

// buckets partitions records by confidence from MinConfidence up to 100.
func (e *Evaluator) buckets(recs []models.BacktestRecord) []models.ConfidenceBucket {
	byLow := map[float64][]float64{}
	for _, rec := range recs {
		steps := math.Floor((rec.Confidence - e.cfg.MinConfidence) / e.cfg.BucketWidth)
		low := e.cfg.MinConfidence + steps*e.cfg.BucketWidth
		if low >= 100 {
			low = 100 - e.cfg.BucketWidth
		}
		byLow[low] = append(byLow[low], rec.RealizedReturnPct)
	}
	lows := make([]float64, 0, len(byLow))
	for low := range byLow {
		lows = append(lows, low)
	}
	sort.Float64s(lows)

	out := make([]models.ConfidenceBucket, 0, len(lows))
	for _, low := range lows {
		mean, hit := meanAndHitRate(byLow[low])
		out = append(out, models.ConfidenceBucket{
			Low:        low,
			High:       low + e.cfg.BucketWidth,
			Count:      len(byLow[low]),
			MeanReturn: mean,
			HitRate:    hit,
		})
	}
	return out
}

func meanAndHitRate(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum, hits := 0.0, 0
	for _, x := range xs {
		sum += x
		if x > 0 {
			hits++
		}
	}
	n := float64(len(xs))
	return sum / n, float64(hits) / n
}

// Pearson returns the correlation coefficient of x and y, or 0 when either
// has no variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	mx, my := 0.0, 0.0
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}
