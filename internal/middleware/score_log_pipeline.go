package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	"EdgeScan/pkg/logger"
)

// ScoreLogPipeline sits between scan workers and the score log sink. Many
// goroutines Append; one goroutine writes, so sink rows never interleave.
type ScoreLogPipeline struct {
	sink    domrepo.ScoreLog
	metrics domrepo.Metrics
	l       *logger.Logger

	bufSize    int
	maxRetries int
	backoff    time.Duration

	queue chan queued
	done  chan struct{}
	// sending counts Append and Flush calls between the closed check and
	// their send. Close waits on it only after closed is set, so Add never
	// races Wait.
	sending sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
	dropped int
}

// queued is an entry to write or, when flushed is set, a marker the writer
// closes once everything ahead of it is written or dropped.
type queued struct {
	entry   models.ScoreLogEntry
	flushed chan struct{}
}

type PipelineOption func(*ScoreLogPipeline)

func WithBufferSize(n int) PipelineOption {
	return func(p *ScoreLogPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets how often a failed write is retried and the initial backoff.
func WithRetry(maxRetries int, backoff time.Duration) PipelineOption {
	return func(p *ScoreLogPipeline) {
		if maxRetries >= 0 {
			p.maxRetries = maxRetries
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *ScoreLogPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewScoreLogPipeline(sink domrepo.ScoreLog, metrics domrepo.Metrics, opts ...PipelineOption) *ScoreLogPipeline {
	p := &ScoreLogPipeline{
		sink:       sink,
		metrics:    metrics,
		l:          logger.Nop(),
		bufSize:    256,
		maxRetries: 3,
		backoff:    50 * time.Millisecond,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan queued, p.bufSize)
	return p
}

var _ domrepo.ScoreLog = (*ScoreLogPipeline)(nil)

// Start launches the writer. Calling it twice is a no-op.
func (p *ScoreLogPipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.run()
}

func (p *ScoreLogPipeline) run() {
	defer close(p.done)
	for q := range p.queue {
		if q.flushed != nil {
			close(q.flushed)
			continue
		}
		p.write(q.entry)
	}
}

// enter starts the writer if needed and registers a pending send. It fails
// once the pipeline is closed.
func (p *ScoreLogPipeline) enter() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("score log pipeline closed")
	}
	if !p.started {
		p.started = true
		go p.run()
	}
	p.sending.Add(1)
	return nil
}

func (p *ScoreLogPipeline) write(e models.ScoreLogEntry) {
	start := time.Now()
	backoff := p.backoff
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			if backoff < 2*time.Second {
				backoff *= 2
			}
		}
		// the writer outlives any single caller's context
		if err = p.sink.Append(context.Background(), e); err == nil {
			p.metrics.RecordLatency("score_log_append", time.Since(start).Seconds())
			return
		}
	}
	p.mu.Lock()
	p.dropped++
	p.mu.Unlock()
	p.metrics.RecordFailure("score_log_write")
	p.l.Error("score log entry dropped",
		logger.Symbol(e.Symbol),
		logger.String("run_id", e.RunID),
		logger.Int("attempts", p.maxRetries+1),
		logger.Error(err),
	)
}

// Append validates e and queues it, blocking while the buffer is full.
func (p *ScoreLogPipeline) Append(ctx context.Context, e models.ScoreLogEntry) error {
	if err := validateEntry(e); err != nil {
		p.metrics.RecordFailure("score_log_invalid")
		return err
	}

	if err := p.enter(); err != nil {
		return err
	}
	defer p.sending.Done()

	select {
	case p.queue <- queued{entry: e}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("score log enqueue %s: %w", e.Symbol, ctx.Err())
	}
}

// Flush waits until every entry queued before the call has been written or
// dropped. Appends racing with Flush are not waited for. Flushing a closed
// pipeline is a no-op since Close drains the queue.
func (p *ScoreLogPipeline) Flush(ctx context.Context) error {
	if err := p.enter(); err != nil {
		return nil
	}
	marker := make(chan struct{})
	select {
	case p.queue <- queued{flushed: marker}:
		p.sending.Done()
	case <-ctx.Done():
		p.sending.Done()
		return fmt.Errorf("flush score log: %w", ctx.Err())
	}

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush score log: %w", ctx.Err())
	}
}

// Dropped is the number of entries given up after all retries.
func (p *ScoreLogPipeline) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close drains the queue and closes the sink.
func (p *ScoreLogPipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	// appends that passed the closed check may still be sending
	p.sending.Wait()
	close(p.queue)
	if started {
		<-p.done
	}
	return p.sink.Close()
}

func validateEntry(e models.ScoreLogEntry) error {
	if e.Symbol == "" {
		return fmt.Errorf("score log entry without symbol: %w", models.ErrMissingField)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("score log entry %s without timestamp: %w", e.Symbol, models.ErrMissingField)
	}
	for _, v := range []float64{e.Score, e.Confidence, e.Price} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("score log entry %s has non-finite value: %w", e.Symbol, models.ErrComputation)
		}
	}
	if e.Score < 0 || e.Score > 100 {
		return fmt.Errorf("score log entry %s score %v out of range: %w", e.Symbol, e.Score, models.ErrComputation)
	}
	return nil
}
