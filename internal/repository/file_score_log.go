package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
)

var scoreLogHeader = []string{"timestamp", "symbol", "score", "confidence", "price", "explanation"}

var backtestHeader = []string{
	"symbol", "signal_timestamp", "predicted_score", "confidence",
	"price_at_signal", "lookahead_days", "realized_price", "realized_return_pct",
}

// FileScoreLog appends score log entries to a CSV file. The header is
// written once, when the file is created.
type FileScoreLog struct {
	path string
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
}

var (
	_ domrepo.ScoreLog       = (*FileScoreLog)(nil)
	_ domrepo.ScoreLogReader = (*FileScoreLog)(nil)
)

func NewFileScoreLog(path string) (*FileScoreLog, error) {
	f, w, err := openCSV(path, scoreLogHeader)
	if err != nil {
		return nil, err
	}
	return &FileScoreLog{path: path, f: f, w: w}, nil
}

func (l *FileScoreLog) Append(_ context.Context, e models.ScoreLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("score log %s: closed", l.path)
	}
	rec := []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Symbol,
		formatFloat(e.Score),
		formatFloat(e.Confidence),
		formatFloat(e.Price),
		e.Explanation,
	}
	if err := l.w.Write(rec); err != nil {
		return fmt.Errorf("append score log: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

// ReadAll parses the whole file. Rows that do not parse are reported as
// ErrMissingField with their line number.
func (l *FileScoreLog) ReadAll(ctx context.Context) ([]models.ScoreLogEntry, error) {
	l.mu.Lock()
	if l.w != nil {
		l.w.Flush()
	}
	l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open score log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(scoreLogHeader)
	var out []models.ScoreLogEntry
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("score log line %d: %v: %w", line, err, models.ErrMissingField)
		}
		if line == 1 && rec[0] == scoreLogHeader[0] {
			continue
		}
		e, err := parseScoreLogRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("score log line %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (l *FileScoreLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	l.w.Flush()
	err := l.f.Close()
	l.f, l.w = nil, nil
	return err
}

func parseScoreLogRecord(rec []string) (models.ScoreLogEntry, error) {
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return models.ScoreLogEntry{}, fmt.Errorf("timestamp %q: %w", rec[0], models.ErrMissingField)
	}
	nums := make([]float64, 3)
	for i, raw := range rec[2:5] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ScoreLogEntry{}, fmt.Errorf("%s %q: %w", scoreLogHeader[i+2], raw, models.ErrMissingField)
		}
		nums[i] = v
	}
	return models.ScoreLogEntry{
		Timestamp:   ts.UTC(),
		Symbol:      rec[1],
		Score:       nums[0],
		Confidence:  nums[1],
		Price:       nums[2],
		Explanation: rec[5],
	}, nil
}

// FileBacktestSink writes evaluated backtest records as CSV.
type FileBacktestSink struct {
	path string
	mu   sync.Mutex
}

var _ domrepo.BacktestSink = (*FileBacktestSink)(nil)

func NewFileBacktestSink(path string) *FileBacktestSink {
	return &FileBacktestSink{path: path}
}

func (s *FileBacktestSink) AppendBacktest(_ context.Context, records []models.BacktestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, w, err := openCSV(s.path, backtestHeader)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, r := range records {
		err := w.Write([]string{
			r.Symbol,
			r.SignalTimestamp.UTC().Format(time.RFC3339),
			formatFloat(r.PredictedScore),
			formatFloat(r.Confidence),
			formatFloat(r.PriceAtSignal),
			strconv.Itoa(r.LookaheadDays),
			formatFloat(r.RealizedPrice),
			formatFloat(r.RealizedReturnPct),
		})
		if err != nil {
			return fmt.Errorf("append backtest: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// openCSV opens path for appending and writes header if the file is empty.
func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("write header %s: %w", path, err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
