package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
	svcmetrics "EdgeScan/internal/service/metrics"
	"EdgeScan/internal/services/backtest"
	"EdgeScan/internal/services/features"
	"EdgeScan/internal/services/indicators"
	"EdgeScan/internal/services/scanner"
	"EdgeScan/internal/services/scoring"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func wave(symbol string, n int, drift float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol, Bars: make([]models.PriceBar, n)}
	prev := 100.0
	for i := 0; i < n; i++ {
		c := 100 + drift*float64(i) + 5*math.Sin(float64(i)/7)
		s.Bars[i] = models.PriceBar{Date: day0.AddDate(0, 0, i), Open: prev, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
		prev = c
	}
	return s
}

type fakePrices struct {
	mu     sync.Mutex
	series map[string]models.PriceSeries
	errs   map[string]error
	block  map[string]bool
	panics map[string]bool
	calls  map[string]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{
		series: map[string]models.PriceSeries{},
		errs:   map[string]error{},
		block:  map[string]bool{},
		panics: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakePrices) GetPriceSeries(ctx context.Context, symbol string, _ int) (models.PriceSeries, error) {
	f.mu.Lock()
	f.calls[symbol]++
	s, err, block, boom := f.series[symbol], f.errs[symbol], f.block[symbol], f.panics[symbol]
	f.mu.Unlock()
	if boom {
		panic("bad feed")
	}
	if block {
		<-ctx.Done()
		return models.PriceSeries{}, ctx.Err()
	}
	return s, err
}

func (f *fakePrices) count(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type fakeModel struct {
	mu   sync.Mutex
	pred models.Prediction
	err  error
	seen map[string]map[string]float64
}

func (m *fakeModel) Predict(_ context.Context, symbol string, f map[string]float64) (models.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]map[string]float64{}
	}
	m.seen[symbol] = f
	return m.pred, m.err
}

type memRecorder struct {
	mu      sync.Mutex
	entries []models.ScoreLogEntry
	flushed int
}

func (r *memRecorder) Append(_ context.Context, e models.ScoreLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRecorder) Flush(context.Context) error {
	r.flushed++
	return nil
}

type memBoard struct {
	board *models.RankedBoard
}

func (b *memBoard) PutBoard(_ context.Context, board models.RankedBoard) error {
	b.board = &board
	return nil
}

func (b *memBoard) LatestBoard(context.Context) (models.RankedBoard, bool, error) {
	if b.board == nil {
		return models.RankedBoard{}, false, nil
	}
	return *b.board, true, nil
}

func newPipeline(prices *fakePrices, model *fakeModel, cfg ScanConfig) *EdgePipeline {
	engine := indicators.NewEngine(indicators.DefaultConfig())
	return NewEdgePipeline(
		cfg,
		prices,
		model,
		engine,
		scanner.New(scanner.DefaultConfig(), engine),
		features.NewExtractor(features.DefaultConfig()),
		scoring.NewCombiner(scoring.DefaultWeights()),
		svcmetrics.Nop{},
		nil,
	)
}

func TestEdgePipeline_Analyze(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 300, 0.2)
	prices.series["SPY"] = wave("SPY", 300, 0.05)
	model := &fakeModel{pred: models.Prediction{Score: 70, Confidence: 80}}
	p := newPipeline(prices, model, DefaultScanConfig())

	a, err := p.Analyze(context.Background(), "AAA", "SPY")
	require.NoError(t, err)
	require.NotNil(t, a.Score)

	last := prices.series["AAA"].Bars[299]
	assert.Equal(t, "AAA", a.Symbol)
	assert.True(t, a.Timestamp.Equal(last.Date))
	assert.Equal(t, last.Close, a.Price)
	assert.GreaterOrEqual(t, a.Score.Score, 0.0)
	assert.LessOrEqual(t, a.Score.Score, 100.0)
	assert.Empty(t, a.Errors)
	for _, s := range a.Signals {
		assert.Equal(t, "AAA", s.Symbol)
	}

	_, ok := a.Score.Component(scoring.LabelRelativeStrength)
	assert.True(t, ok)
	_, ok = a.Score.Component(scoring.LabelPredicted)
	assert.True(t, ok)

	f := model.seen["AAA"]
	require.NotNil(t, f)
	assert.Contains(t, f, indicators.RSI)
	assert.Contains(t, f, "atr_pct")
	assert.Contains(t, f, "volatility")
	assert.Contains(t, f, scoring.LabelRelativeStrength)
}

func TestEdgePipeline_Deterministic(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 260, 0.1)
	p := newPipeline(prices, &fakeModel{err: models.ErrDataUnavailable}, DefaultScanConfig())

	a1, err := p.Analyze(context.Background(), "AAA", "")
	require.NoError(t, err)
	a2, err := p.Analyze(context.Background(), "AAA", "")
	require.NoError(t, err)
	assert.Equal(t, a1.Score, a2.Score)
	assert.Equal(t, a1.Signals, a2.Signals)
}

func TestEdgePipeline_EmptySeries(t *testing.T) {
	prices := newFakePrices()
	p := newPipeline(prices, &fakeModel{}, DefaultScanConfig())

	_, err := p.Analyze(context.Background(), "NOPE", "SPY")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	var se *models.SymbolError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "NOPE", se.Symbol)
	assert.Zero(t, prices.count("SPY"))
}

func TestEdgePipeline_DegradesOnSideFailures(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 300, 0.2)
	prices.errs["SPY"] = errors.New("upstream down")
	model := &fakeModel{err: errors.New("model 500")}
	p := newPipeline(prices, model, DefaultScanConfig())

	a, err := p.Analyze(context.Background(), "AAA", "SPY")
	require.NoError(t, err)
	require.NotNil(t, a.Score)
	assert.Contains(t, a.Errors, scoring.LabelRelativeStrength)
	assert.Contains(t, a.Errors, scoring.LabelPredicted)
	_, ok := a.Score.Component(scoring.LabelRelativeStrength)
	assert.False(t, ok)
	_, ok = a.Score.Component(scoring.LabelPredicted)
	assert.False(t, ok)
}

func TestEdgePipeline_NoModelIsNotAnError(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 300, 0.2)
	p := newPipeline(prices, &fakeModel{err: models.ErrDataUnavailable}, DefaultScanConfig())

	a, err := p.Analyze(context.Background(), "AAA", "")
	require.NoError(t, err)
	assert.NotContains(t, a.Errors, scoring.LabelPredicted)
}

func TestEdgePipeline_Weekly(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 700, 0.1)
	p := newPipeline(prices, &fakeModel{err: models.ErrDataUnavailable}, DefaultScanConfig())

	a, err := p.AnalyzeWith(context.Background(), "AAA", AnalyzeOptions{Timeframe: models.TFWeekly, RecentBars: 3})
	require.NoError(t, err)
	assert.True(t, a.Timestamp.Equal(prices.series["AAA"].Bars[699].Date))
}

func TestBatchScanner_Run(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 300, 0.3)
	prices.series["BBB"] = wave("BBB", 300, -0.1)
	prices.series["SPY"] = wave("SPY", 300, 0.05)
	prices.panics["BOOM"] = true

	cfg := DefaultScanConfig()
	cfg.Workers = 2
	rec := &memRecorder{}
	board := &memBoard{}
	bs := NewBatchScanner(BatchScannerParams{
		Pipeline: newPipeline(prices, &fakeModel{err: models.ErrDataUnavailable}, cfg),
		Recorder: rec,
		Board:    board,
		Metrics:  svcmetrics.Nop{},
	})
	bs.newID = func() string { return "run-1" }

	got, err := bs.Run(context.Background(), []string{"aaa", "BBB", "MISSING", "BOOM", "AAA"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Scores, 2)
	assert.GreaterOrEqual(t, got.Scores[0].Score, got.Scores[1].Score)

	reasons := map[string]string{}
	for _, f := range got.Failures {
		reasons[f.Symbol] = f.Reason
	}
	assert.Equal(t, map[string]string{"MISSING": "data_unavailable", "BOOM": "computation_error"}, reasons)

	require.Len(t, rec.entries, 2)
	assert.Equal(t, 1, rec.flushed)
	for i, e := range rec.entries {
		assert.Equal(t, "run-1", e.RunID)
		assert.Equal(t, got.Scores[i].Symbol, e.Symbol)
	}
	require.NotNil(t, board.board)
	assert.Equal(t, "run-1", board.board.RunID)

	assert.Equal(t, 1, prices.count("SPY"))
	assert.Equal(t, 1, prices.count("AAA"))
}

func TestBatchScanner_SymbolTimeout(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = wave("AAA", 300, 0.3)
	prices.block["SLOW"] = true

	cfg := DefaultScanConfig()
	cfg.Benchmark = ""
	cfg.SymbolTimeout = 20 * time.Millisecond
	bs := NewBatchScanner(BatchScannerParams{
		Pipeline: newPipeline(prices, &fakeModel{err: models.ErrDataUnavailable}, cfg),
		Metrics:  svcmetrics.Nop{},
	})

	got, err := bs.Run(context.Background(), []string{"SLOW", "AAA"})
	require.NoError(t, err)
	require.Len(t, got.Scores, 1)
	assert.Equal(t, "AAA", got.Scores[0].Symbol)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "timeout", got.Failures[0].Reason)
}

func TestBatchScanner_Universe(t *testing.T) {
	prices := newFakePrices()
	cfg := DefaultScanConfig()
	cfg.Symbols = nil
	bs := NewBatchScanner(BatchScannerParams{
		Pipeline: newPipeline(prices, &fakeModel{}, cfg),
		Metrics:  svcmetrics.Nop{},
	})
	_, err := bs.Run(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, models.ErrMissingField)
}

func TestUniqueSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, uniqueSymbols([]string{"aapl", " MSFT ", "AAPL", ""}))
}

type memLog struct {
	entries []models.ScoreLogEntry
	err     error
}

func (m *memLog) ReadAll(context.Context) ([]models.ScoreLogEntry, error) { return m.entries, m.err }

type memSink struct {
	records []models.BacktestRecord
}

func (m *memSink) AppendBacktest(_ context.Context, r []models.BacktestRecord) error {
	m.records = append(m.records, r...)
	return nil
}

func flatThenJump(symbol string, n, at int, from, to float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol, Bars: make([]models.PriceBar, n)}
	for i := range s.Bars {
		c := from
		if i >= at {
			c = to
		}
		s.Bars[i] = models.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return s
}

func TestBacktestRun(t *testing.T) {
	prices := newFakePrices()
	prices.series["AAA"] = flatThenJump("AAA", 20, 15, 100, 110)
	prices.errs["BBB"] = fmt.Errorf("gone: %w", models.ErrDataUnavailable)

	log := &memLog{entries: []models.ScoreLogEntry{
		{Symbol: "AAA", Timestamp: day0.AddDate(0, 0, 10), Score: 80, Confidence: 75, Price: 100},
		{Symbol: "AAA", Timestamp: day0.AddDate(0, 0, 17), Score: 60, Confidence: 90, Price: 110},
		{Symbol: "AAA", Timestamp: day0.AddDate(0, 0, 11), Score: 55, Confidence: 20, Price: 100},
		{Symbol: "BBB", Timestamp: day0.AddDate(0, 0, 10), Score: 40, Confidence: 60, Price: 50},
	}}
	sink := &memSink{}
	cfg := backtest.DefaultConfig()
	run := NewBacktestRun(BacktestRunParams{Config: cfg, Log: log, Prices: prices, Sink: sink, Metrics: svcmetrics.Nop{}})
	run.now = func() time.Time { return day0.AddDate(0, 0, 20) }

	report, err := run.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.InDelta(t, 10.0, report.Records[0].RealizedReturnPct, 1e-9)
	assert.Equal(t, 1, report.Pending)
	assert.Equal(t, 1, report.Filtered)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, sink.records, 1)
}

func TestBacktestRun_ReadError(t *testing.T) {
	run := NewBacktestRun(BacktestRunParams{Config: backtest.DefaultConfig(), Log: &memLog{err: errors.New("disk")}, Prices: newFakePrices(), Metrics: svcmetrics.Nop{}})
	_, err := run.Run(context.Background())
	assert.Error(t, err)
}

func TestBacktestRun_LookbackCoversOldestEntry(t *testing.T) {
	run := NewBacktestRun(BacktestRunParams{Config: backtest.DefaultConfig(), Log: &memLog{}, Prices: newFakePrices(), Metrics: svcmetrics.Nop{}})
	run.now = func() time.Time { return day0.AddDate(0, 0, 30) }
	assert.Equal(t, 37, run.lookbackFor(day0))
}
