package usecase

import (
	"context"
	"fmt"
	"time"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	"EdgeScan/pkg/logger"
)

// SeriesWriter persists daily bars.
type SeriesWriter interface {
	StoreSeries(ctx context.Context, series models.PriceSeries) error
}

// Ingest copies daily history from a remote supplier into the local store
// so later scans can run against it.
type Ingest struct {
	source  domrepo.PriceSupplier
	store   SeriesWriter
	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewIngest(source domrepo.PriceSupplier, store SeriesWriter, metrics domrepo.Metrics, l *logger.Logger) *Ingest {
	if l == nil {
		l = logger.Nop()
	}
	return &Ingest{source: source, store: store, metrics: metrics, l: l}
}

// IngestResult counts stored bars per symbol and lists failures.
type IngestResult struct {
	Bars     map[string]int         `json:"bars"`
	Failures []models.SymbolFailure `json:"failures,omitempty"`
}

// Run fetches lookbackDays of history per symbol, one at a time. The
// supplier's own rate limiter paces the calls.
func (g *Ingest) Run(ctx context.Context, symbols []string, lookbackDays int) (IngestResult, error) {
	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		return IngestResult{}, fmt.Errorf("no symbols to ingest: %w", models.ErrMissingField)
	}
	res := IngestResult{Bars: map[string]int{}}
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := g.one(ctx, sym, lookbackDays)
		if err != nil {
			reason := models.Reason(err)
			g.metrics.RecordFailure(reason)
			g.l.Warn("ingest failed", logger.Symbol(sym), logger.String("reason", reason), logger.Error(err))
			res.Failures = append(res.Failures, models.SymbolFailure{Symbol: sym, Reason: reason, Error: err.Error()})
			continue
		}
		res.Bars[sym] = n
		g.l.Info("ingested", logger.Symbol(sym), logger.Int("bars", n))
	}
	return res, nil
}

func (g *Ingest) one(ctx context.Context, symbol string, lookbackDays int) (int, error) {
	start := time.Now()
	defer func() { g.metrics.RecordLatency("ingest_symbol", time.Since(start).Seconds()) }()

	series, err := g.source.GetPriceSeries(ctx, symbol, lookbackDays)
	if err != nil {
		return 0, &models.SymbolError{Symbol: symbol, Err: err}
	}
	if series.Empty() {
		return 0, &models.SymbolError{Symbol: symbol, Err: fmt.Errorf("no bars: %w", models.ErrDataUnavailable)}
	}
	series.Symbol = symbol
	if err := series.Validate(); err != nil {
		return 0, &models.SymbolError{Symbol: symbol, Err: err}
	}
	if err := g.store.StoreSeries(ctx, series); err != nil {
		return 0, &models.SymbolError{Symbol: symbol, Err: fmt.Errorf("store: %w", err)}
	}
	return series.Len(), nil
}
