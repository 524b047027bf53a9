package repository

import (
	"context"

	"EdgeScan/internal/domain/models"
)

// PriceSupplier returns the daily history of a symbol covering at least
// lookbackDays calendar days. An unknown symbol yields an empty series.
type PriceSupplier interface {
	GetPriceSeries(ctx context.Context, symbol string, lookbackDays int) (models.PriceSeries, error)
}

// PriceStore is a writable price history (ClickHouse daily bars).
type PriceStore interface {
	PriceSupplier
	Init(ctx context.Context) error
	StoreSeries(ctx context.Context, series models.PriceSeries) error
	Close() error
}

// ScoreLog is the append-only sink of composite scores.
type ScoreLog interface {
	Append(ctx context.Context, entry models.ScoreLogEntry) error
	Close() error
}

// ScoreLogReader reads back every logged score, oldest first.
type ScoreLogReader interface {
	ReadAll(ctx context.Context) ([]models.ScoreLogEntry, error)
}

// BacktestSink persists evaluated backtest records.
type BacktestSink interface {
	AppendBacktest(ctx context.Context, records []models.BacktestRecord) error
}

// BoardCache holds the latest ranked board for readers.
type BoardCache interface {
	PutBoard(ctx context.Context, board models.RankedBoard) error
	LatestBoard(ctx context.Context) (models.RankedBoard, bool, error)
}

type Metrics interface {
	RecordScan(symbol string, seconds float64)
	RecordScore(symbol string, score float64)
	RecordSignal(kind models.SignalKind, dir models.Direction)
	RecordFailure(reason string)
	RecordLatency(op string, seconds float64)
}
