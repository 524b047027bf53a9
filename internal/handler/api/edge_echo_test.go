package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
	icache "EdgeScan/internal/service/cache"
	svcmetrics "EdgeScan/internal/service/metrics"
	"EdgeScan/internal/services/analytics"
	"EdgeScan/internal/services/backtest"
	"EdgeScan/internal/services/features"
	"EdgeScan/internal/services/indicators"
	"EdgeScan/internal/services/scanner"
	"EdgeScan/internal/services/scoring"
	"EdgeScan/internal/usecase"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func wave(symbol string, n int) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol, Bars: make([]models.PriceBar, n)}
	for i := range s.Bars {
		c := 100 + 0.1*float64(i) + 4*math.Sin(float64(i)/6)
		s.Bars[i] = models.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return s
}

type staticPrices struct {
	mu     sync.Mutex
	series map[string]models.PriceSeries
	calls  int
}

func (p *staticPrices) GetPriceSeries(_ context.Context, symbol string, _ int) (models.PriceSeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.series[symbol], nil
}

func (p *staticPrices) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type staticLog struct{ entries []models.ScoreLogEntry }

func (l staticLog) ReadAll(context.Context) ([]models.ScoreLogEntry, error) { return l.entries, nil }

type fixture struct {
	e      *echo.Echo
	prices *staticPrices
	board  *icache.BoardStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	prices := &staticPrices{series: map[string]models.PriceSeries{
		"AAPL": wave("AAPL", 300),
		"SPY":  wave("SPY", 300),
	}}
	cfg := usecase.DefaultScanConfig()
	cfg.Symbols = []string{"AAPL", "MISSING"}
	engine := indicators.NewEngine(indicators.DefaultConfig())
	pipe := usecase.NewEdgePipeline(
		cfg, prices, analytics.NoModel{}, engine,
		scanner.New(scanner.DefaultConfig(), engine),
		features.NewExtractor(features.DefaultConfig()),
		scoring.NewCombiner(scoring.DefaultWeights()),
		svcmetrics.Nop{}, nil,
	)
	board := icache.NewBoardStore(icache.NewTTLCache(), time.Hour)
	bs := usecase.NewBatchScanner(usecase.BatchScannerParams{Pipeline: pipe, Board: board, Metrics: svcmetrics.Nop{}})
	bt := usecase.NewBacktestRun(usecase.BacktestRunParams{
		Config: backtest.DefaultConfig(),
		Log: staticLog{entries: []models.ScoreLogEntry{
			{Symbol: "AAPL", Timestamp: day0.AddDate(0, 0, 100), Score: 70, Confidence: 80, Price: wave("AAPL", 300).Bars[100].Close},
		}},
		Prices:  prices,
		Metrics: svcmetrics.Nop{},
	})

	h := NewEdgeHandler(EdgeHandlerParams{
		Pipeline: pipe,
		Scanner:  bs,
		Backtest: bt,
		Board:    board,
		Cache:    icache.NewTTLCache(),
		CacheTTL: time.Minute,
	})
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, prices: prices, board: board}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) {
	t.Helper()
	var env struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, rec.Code, env.Status)
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
}

func TestScore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/scores?symbol=aapl", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a models.SymbolAnalysis
	decode(t, rec, &a)
	assert.Equal(t, "AAPL", a.Symbol)
	require.NotNil(t, a.Score)
	assert.GreaterOrEqual(t, a.Score.Score, 0.0)
	assert.LessOrEqual(t, a.Score.Score, 100.0)

	calls := f.prices.count()
	rec = f.do(http.MethodGet, "/api/scores?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, calls, f.prices.count(), "second request is served from cache")
}

func TestScore_Validation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/scores?lookback=10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
}

func TestScore_UnknownSymbol(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/scores?symbol=NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "data_unavailable")
}

func TestSignals(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/signals?symbol=AAPL&tf=1w&recent=4", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res signalsResponse
	decode(t, rec, &res)
	assert.Equal(t, models.TFWeekly, res.Timeframe)
	assert.NotNil(t, res.Signals)
	for _, s := range res.Signals {
		assert.Equal(t, "AAPL", s.Symbol)
	}

	rec = f.do(http.MethodGet, "/api/signals?symbol=AAPL&tf=4h", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBoard(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/board", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/scan", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scanned models.RankedBoard
	decode(t, rec, &scanned)
	require.Len(t, scanned.Scores, 1)
	require.Len(t, scanned.Failures, 1)
	assert.Equal(t, "MISSING", scanned.Failures[0].Symbol)

	rec = f.do(http.MethodGet, "/api/board?top=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var b models.RankedBoard
	decode(t, rec, &b)
	assert.Equal(t, scanned.RunID, b.RunID)
	assert.Equal(t, "AAPL", b.Scores[0].Symbol)
}

func TestBacktest(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/backtest?lookahead=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r models.BacktestReport
	decode(t, rec, &r)
	require.Len(t, r.Records, 1)
	assert.Equal(t, 10, r.Records[0].LookaheadDays)

	s := wave("AAPL", 300)
	want := (s.Bars[110].Close - s.Bars[100].Close) / s.Bars[100].Close * 100
	assert.InDelta(t, want, r.Records[0].RealizedReturnPct, 0.005)

	rec = f.do(http.MethodGet, "/api/backtest?min_confidence=90", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &r)
	assert.Equal(t, 1, r.Filtered)

	rec = f.do(http.MethodGet, "/api/backtest?lookahead=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToAppError(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", models.ErrDataUnavailable):     http.StatusNotFound,
		fmt.Errorf("x: %w", models.ErrInsufficientHistory): http.StatusUnprocessableEntity,
		fmt.Errorf("x: %w", context.DeadlineExceeded):      http.StatusGatewayTimeout,
		fmt.Errorf("x: %w", models.ErrComputation):         http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, toAppError(err).Status, err.Error())
	}
}
