package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	"EdgeScan/pkg/logger"
)

// ScoreRecorder accepts score log entries from a run. Flush returns once
// everything appended so far has been written or dropped.
type ScoreRecorder interface {
	Append(ctx context.Context, e models.ScoreLogEntry) error
	Flush(ctx context.Context) error
}

// BatchScanner scores a universe of symbols with bounded concurrency and
// publishes the ranked board.
type BatchScanner struct {
	pipeline *EdgePipeline
	recorder ScoreRecorder
	board    domrepo.BoardCache
	metrics  domrepo.Metrics
	l        *logger.Logger
	newID    func() string
}

type BatchScannerParams struct {
	Pipeline *EdgePipeline
	Recorder ScoreRecorder
	Board    domrepo.BoardCache
	Metrics  domrepo.Metrics
	Logger   *logger.Logger
}

func NewBatchScanner(p BatchScannerParams) *BatchScanner {
	l := p.Logger
	if l == nil {
		l = logger.Nop()
	}
	return &BatchScanner{
		pipeline: p.Pipeline,
		recorder: p.Recorder,
		board:    p.Board,
		metrics:  p.Metrics,
		l:        l,
		newID:    func() string { return uuid.NewString() },
	}
}

// Run scores symbols (or the configured universe when empty). A failing
// symbol is reported on the board and never aborts the run.
func (b *BatchScanner) Run(ctx context.Context, symbols []string) (models.RankedBoard, error) {
	cfg := b.pipeline.Config()
	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		symbols = uniqueSymbols(cfg.Symbols)
	}
	if len(symbols) == 0 {
		return models.RankedBoard{}, fmt.Errorf("no symbols to scan: %w", models.ErrMissingField)
	}

	runID := b.newID()
	started := time.Now()
	l := b.l.With(logger.String("run_id", runID))
	l.Info("scan started", logger.Int("symbols", len(symbols)), logger.Int("workers", cfg.Workers))

	opts := AnalyzeOptions{Benchmark: cfg.Benchmark, LookbackDays: cfg.LookbackDays}
	opts = b.pipeline.withDefaults(opts)
	bench, benchErr := b.pipeline.benchmark(ctx, "", opts)
	if benchErr != nil {
		l.Warn("benchmark unavailable", logger.Symbol(opts.Benchmark), logger.Error(benchErr))
	}

	type outcome struct {
		symbol   string
		analysis models.SymbolAnalysis
		err      error
	}
	results := make([]outcome, len(symbols))
	sem := make(chan struct{}, max(cfg.Workers, 1))
	var wg sync.WaitGroup

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = outcome{symbol: sym, err: &models.SymbolError{Symbol: sym, Err: ctx.Err()}}
				return
			}
			defer func() { <-sem }()
			a, err := b.scanOne(ctx, sym, bench, benchErr, opts, cfg.SymbolTimeout)
			results[i] = outcome{symbol: sym, analysis: a, err: err}
		}(i, sym)
	}
	wg.Wait()

	board := models.RankedBoard{RunID: runID, Timestamp: started.UTC()}
	for _, r := range results {
		if r.err != nil {
			reason := models.Reason(r.err)
			b.metrics.RecordFailure(reason)
			l.Warn("symbol failed", logger.Symbol(r.symbol), logger.String("reason", reason), logger.Error(r.err))
			board.Failures = append(board.Failures, models.SymbolFailure{Symbol: r.symbol, Reason: reason, Error: r.err.Error()})
			continue
		}
		if r.analysis.Score != nil {
			board.Scores = append(board.Scores, *r.analysis.Score)
		}
	}
	sort.SliceStable(board.Scores, func(i, j int) bool {
		if board.Scores[i].Score != board.Scores[j].Score {
			return board.Scores[i].Score > board.Scores[j].Score
		}
		return board.Scores[i].Symbol < board.Scores[j].Symbol
	})

	if b.recorder != nil {
		for _, s := range board.Scores {
			if err := b.recorder.Append(ctx, models.NewScoreLogEntry(runID, s)); err != nil {
				l.Error("score log append", logger.Symbol(s.Symbol), logger.Error(err))
			}
		}
		if err := b.recorder.Flush(ctx); err != nil {
			l.Error("score log flush", logger.Error(err))
		}
	}
	if b.board != nil {
		if err := b.board.PutBoard(ctx, board); err != nil {
			l.Warn("board cache", logger.Error(err))
		}
	}

	b.metrics.RecordLatency("scan_run", time.Since(started).Seconds())
	l.Info("scan finished",
		logger.Int("scored", len(board.Scores)),
		logger.Int("failed", len(board.Failures)),
		logger.Duration("took", time.Since(started)),
	)
	return board, nil
}

func (b *BatchScanner) scanOne(ctx context.Context, symbol string, bench *models.PriceSeries, benchErr error, opts AnalyzeOptions, timeout time.Duration) (a models.SymbolAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.l.Error("panic while scoring", logger.Symbol(symbol), logger.Any("panic", r), logger.String("stack", string(debug.Stack())))
			err = &models.SymbolError{Symbol: symbol, Err: fmt.Errorf("panic: %v: %w", r, models.ErrComputation)}
		}
	}()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	series, err := b.pipeline.fetch(ctx, symbol, opts.LookbackDays)
	if err != nil {
		return models.SymbolAnalysis{}, err
	}
	if strings.EqualFold(symbol, opts.Benchmark) {
		bench, benchErr = nil, nil
	}
	return b.pipeline.analyzeSeries(ctx, series, bench, benchErr, opts)
}

func uniqueSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
