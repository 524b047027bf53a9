package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	pkgch "EdgeScan/pkg/clickhouse"
	applogger "EdgeScan/pkg/logger"
)

// insertChunk bounds the VALUES rows of one INSERT.
const insertChunk = 2000

// CHPriceStore keeps daily bars in ClickHouse.
type CHPriceStore struct {
	db       *sqlx.DB
	database string
	l        *applogger.Logger
	now      func() time.Time
}

var _ domrepo.PriceStore = (*CHPriceStore)(nil)

func NewCHPriceStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHPriceStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceStore{db: ch.DB(), database: database, l: l, now: time.Now}
}

func (s *CHPriceStore) table() string { return s.database + ".daily_bars" }

// Init creates the EdgeScan tables if they are missing.
func (s *CHPriceStore) Init(ctx context.Context) error {
	for _, stmt := range pkgch.Schema(s.database) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// GetPriceSeries returns bars dated within the last lookbackDays calendar
// days, oldest first. FINAL collapses rows re-ingested for the same day.
func (s *CHPriceStore) GetPriceSeries(ctx context.Context, symbol string, lookbackDays int) (models.PriceSeries, error) {
	since := s.now().UTC().AddDate(0, 0, -lookbackDays).Truncate(24 * time.Hour)
	q := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND date >= ?
		ORDER BY date ASC`, s.table())

	var bars []models.PriceBar
	if err := s.db.SelectContext(ctx, &bars, q, symbol, since); err != nil {
		s.l.Error("clickhouse select daily_bars",
			applogger.Symbol(symbol),
			applogger.Int("lookback_days", lookbackDays),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("get price series %s: %w", symbol, err)
	}
	for i := range bars {
		bars[i].Date = bars[i].Date.UTC()
	}
	return models.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

// StoreSeries upserts the bars of a series in multi-row inserts.
func (s *CHPriceStore) StoreSeries(ctx context.Context, series models.PriceSeries) error {
	if series.Empty() {
		return nil
	}
	for start := 0; start < len(series.Bars); start += insertChunk {
		end := start + insertChunk
		if end > len(series.Bars) {
			end = len(series.Bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range series.Bars[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, series.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, volume) VALUES %s",
			s.table(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store series %s: %w", series.Symbol, err)
		}
	}
	s.l.Debug("stored daily bars", applogger.Symbol(series.Symbol), applogger.Int("bars", series.Len()))
	return nil
}

// Close is a no-op; the pool belongs to the ClickHouse client.
func (s *CHPriceStore) Close() error { return nil }
