package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
	pkgch "EdgeScan/pkg/clickhouse"
	pkgkafka "EdgeScan/pkg/kafka"
)

func newMockClient(t *testing.T) (*pkgch.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return pkgch.NewFromDB(db), mock
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestCHPriceStore_GetPriceSeries(t *testing.T) {
	client, mock := newMockClient(t)
	store := NewCHPriceStore(client, "edgescan", nil)
	store.now = func() time.Time { return day(20) }

	rows := sqlmock.NewRows([]string{"date", "open", "high", "low", "close", "volume"}).
		AddRow(day(18), 10.0, 11.0, 9.5, 10.5, 1000.0).
		AddRow(day(19), 10.5, 12.0, 10.0, 11.5, 1500.0)
	mock.ExpectQuery(`SELECT date, open, high, low, close, volume\s+FROM edgescan\.daily_bars FINAL`).
		WithArgs("AAPL", day(10)).
		WillReturnRows(rows)

	s, err := store.GetPriceSeries(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s.Symbol)
	require.Equal(t, 2, s.Len())
	last, _ := s.Last()
	assert.Equal(t, 11.5, last.Close)
	assert.Equal(t, day(18), s.Bars[0].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHPriceStore_UnknownSymbolIsEmpty(t *testing.T) {
	client, mock := newMockClient(t)
	store := NewCHPriceStore(client, "edgescan", nil)

	mock.ExpectQuery(`FROM edgescan\.daily_bars`).
		WithArgs("NOPE", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"date", "open", "high", "low", "close", "volume"}))

	s, err := store.GetPriceSeries(context.Background(), "NOPE", 30)
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestCHPriceStore_QueryError(t *testing.T) {
	client, mock := newMockClient(t)
	store := NewCHPriceStore(client, "edgescan", nil)
	mock.ExpectQuery(`FROM edgescan\.daily_bars`).WillReturnError(errors.New("connection refused"))

	_, err := store.GetPriceSeries(context.Background(), "AAPL", 30)
	assert.ErrorContains(t, err, "connection refused")
}

func TestCHPriceStore_StoreSeries(t *testing.T) {
	client, mock := newMockClient(t)
	store := NewCHPriceStore(client, "edgescan", nil)

	series := models.PriceSeries{Symbol: "MSFT", Bars: []models.PriceBar{
		{Date: day(1), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Date: day(2), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
	}}
	mock.ExpectExec(`INSERT INTO edgescan\.daily_bars \(symbol, date, open, high, low, close, volume\) VALUES \(\?, \?, \?, \?, \?, \?, \?\),\(\?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs("MSFT", day(1), 1.0, 2.0, 0.5, 1.5, 10.0, "MSFT", day(2), 1.5, 2.5, 1.0, 2.0, 20.0).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.StoreSeries(context.Background(), series))
	require.NoError(t, store.StoreSeries(context.Background(), models.PriceSeries{Symbol: "X"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHPriceStore_Init(t *testing.T) {
	client, mock := newMockClient(t)
	store := NewCHPriceStore(client, "edgescan", nil)
	for range pkgch.Schema("edgescan") {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHScoreLog_AppendAndRead(t *testing.T) {
	client, mock := newMockClient(t)
	log := NewCHScoreLog(client, "edgescan")

	e := models.ScoreLogEntry{RunID: "r1", Timestamp: day(5), Symbol: "AAPL", Score: 71.5, Confidence: 80, Price: 190.1, Explanation: "predicted +20.0"}
	mock.ExpectExec(`INSERT INTO edgescan\.score_log \(run_id, timestamp, symbol, score, confidence, price, explanation\)`).
		WithArgs("r1", day(5), "AAPL", 71.5, 80.0, 190.1, "predicted +20.0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, log.Append(context.Background(), e))

	mock.ExpectQuery(`FROM edgescan\.score_log\s+ORDER BY inserted_at`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "timestamp", "symbol", "score", "confidence", "price", "explanation"}).
			AddRow("r1", day(5), "AAPL", 71.5, 80.0, 190.1, "predicted +20.0"))
	got, err := log.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHScoreLog_AppendBacktest(t *testing.T) {
	client, mock := newMockClient(t)
	log := NewCHScoreLog(client, "edgescan")

	rec := models.BacktestRecord{Symbol: "AAPL", SignalTimestamp: day(1), PredictedScore: 70, Confidence: 60,
		PriceAtSignal: 100, LookaheadDays: 5, RealizedPrice: 110, RealizedReturnPct: 10}
	mock.ExpectExec(`INSERT INTO edgescan\.backtest_records`).
		WithArgs("AAPL", day(1), 70.0, 60.0, 100.0, uint16(5), 110.0, 10.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, log.AppendBacktest(context.Background(), []models.BacktestRecord{rec}))
	require.NoError(t, log.AppendBacktest(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileScoreLog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scores.csv")
	log, err := NewFileScoreLog(path)
	require.NoError(t, err)

	entries := []models.ScoreLogEntry{
		{Timestamp: day(1), Symbol: "AAPL", Score: 64.2, Confidence: 70, Price: 101.25, Explanation: "predicted +20.0; reversal_risk +10.0"},
		{Timestamp: day(2), Symbol: "MSFT", Score: 0, Confidence: 0, Price: 300, Explanation: "no contributing signals, \"quoted\""},
	}
	for _, e := range entries {
		require.NoError(t, log.Append(context.Background(), e))
	}
	require.NoError(t, log.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "timestamp,symbol,score,confidence,price,explanation\n")
	assert.Contains(t, string(raw), "2024-03-01T00:00:00Z,AAPL,64.2,70,101.25,")

	// reopening must not repeat the header
	log, err = NewFileScoreLog(path)
	require.NoError(t, err)
	got, err := log.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	require.NoError(t, log.Close())

	assert.Error(t, log.Append(context.Background(), entries[0]))
}

func TestFileScoreLog_BadRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,symbol,score,confidence,price,explanation\n2024-03-01T00:00:00Z,AAPL,abc,1,2,x\n"), 0o644))

	log, err := NewFileScoreLog(path)
	require.NoError(t, err)
	defer log.Close()

	_, err = log.ReadAll(context.Background())
	assert.ErrorIs(t, err, models.ErrMissingField)
}

func TestFileBacktestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.csv")
	sink := NewFileBacktestSink(path)
	rec := models.BacktestRecord{Symbol: "AAPL", SignalTimestamp: day(1), PredictedScore: 70, Confidence: 60,
		PriceAtSignal: 100, LookaheadDays: 5, RealizedPrice: 110, RealizedReturnPct: 10}

	require.NoError(t, sink.AppendBacktest(context.Background(), []models.BacktestRecord{rec}))
	require.NoError(t, sink.AppendBacktest(context.Background(), []models.BacktestRecord{rec}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"symbol,signal_timestamp,predicted_score,confidence,price_at_signal,lookahead_days,realized_price,realized_return_pct\n"+
			"AAPL,2024-03-01T00:00:00Z,70,60,100,5,110,10\n"+
			"AAPL,2024-03-01T00:00:00Z,70,60,100,5,110,10\n",
		string(raw))
}

type fakePublisher struct {
	topic  string
	msgs   []pkgkafka.Message
	err    error
	closed bool
}

func (f *fakePublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestKafkaScoreLog(t *testing.T) {
	pub := &fakePublisher{}
	log := NewKafkaScoreLog(pub, "edgescan.score_log")

	e := models.ScoreLogEntry{RunID: "r9", Timestamp: day(3), Symbol: "NVDA", Score: 88}
	require.NoError(t, log.Append(context.Background(), e))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "edgescan.score_log", pub.topic)
	assert.Equal(t, []byte("NVDA"), pub.msgs[0].Key)
	assert.Equal(t, e, pub.msgs[0].Value)
	assert.Equal(t, "r9", pub.msgs[0].Headers[pkgkafka.RunIDHeader])

	pub.err = errors.New("broker down")
	assert.ErrorContains(t, log.Append(context.Background(), e), "NVDA")

	require.NoError(t, log.Close())
	assert.True(t, pub.closed)
}
