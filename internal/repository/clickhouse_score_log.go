package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	pkgch "EdgeScan/pkg/clickhouse"
)

// CHScoreLog stores the score log and backtest records in ClickHouse.
type CHScoreLog struct {
	db       *sqlx.DB
	database string
}

var (
	_ domrepo.ScoreLog       = (*CHScoreLog)(nil)
	_ domrepo.ScoreLogReader = (*CHScoreLog)(nil)
	_ domrepo.BacktestSink   = (*CHScoreLog)(nil)
)

func NewCHScoreLog(ch *pkgch.Client, database string) *CHScoreLog {
	return &CHScoreLog{db: ch.DB(), database: database}
}

func (s *CHScoreLog) Append(ctx context.Context, e models.ScoreLogEntry) error {
	return s.AppendBatch(ctx, []models.ScoreLogEntry{e})
}

// AppendBatch writes several entries in one INSERT.
func (s *CHScoreLog) AppendBatch(ctx context.Context, entries []models.ScoreLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*7)
	for _, e := range entries {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, e.RunID, e.Timestamp.UTC(), e.Symbol, e.Score, e.Confidence, e.Price, e.Explanation)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s.score_log (run_id, timestamp, symbol, score, confidence, price, explanation) VALUES %s",
		s.database, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("append score log: %w", err)
	}
	return nil
}

// ReadAll returns every entry in insertion order.
func (s *CHScoreLog) ReadAll(ctx context.Context) ([]models.ScoreLogEntry, error) {
	q := fmt.Sprintf(`
		SELECT run_id, timestamp, symbol, score, confidence, price, explanation
		FROM %s.score_log
		ORDER BY inserted_at ASC, symbol ASC`, s.database)
	var out []models.ScoreLogEntry
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("read score log: %w", err)
	}
	for i := range out {
		out[i].Timestamp = out[i].Timestamp.UTC()
	}
	return out, nil
}

func (s *CHScoreLog) AppendBacktest(ctx context.Context, records []models.BacktestRecord) error {
	if len(records) == 0 {
		return nil
	}
	for start := 0; start < len(records); start += insertChunk {
		end := start + insertChunk
		if end > len(records) {
			end = len(records)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, r := range records[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.Symbol, r.SignalTimestamp.UTC(), r.PredictedScore, r.Confidence,
				r.PriceAtSignal, uint16(r.LookaheadDays), r.RealizedPrice, r.RealizedReturnPct)
		}
		q := fmt.Sprintf(`INSERT INTO %s.backtest_records
			(symbol, signal_timestamp, predicted_score, confidence, price_at_signal, lookahead_days, realized_price, realized_return_pct)
			VALUES %s`, s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("append backtest records: %w", err)
		}
	}
	return nil
}

func (s *CHScoreLog) Close() error { return nil }
