package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	pkgkafka "EdgeScan/pkg/kafka"
)

// ScoreLogHandler persists score log entries published on Kafka.
type ScoreLogHandler struct {
	topic   string
	store   domrepo.ScoreLog
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*ScoreLogHandler)(nil)

func NewScoreLogHandler(topic string, store domrepo.ScoreLog, metrics domrepo.Metrics) *ScoreLogHandler {
	return &ScoreLogHandler{topic: topic, store: store, metrics: metrics}
}

func (h *ScoreLogHandler) Topic() string { return h.topic }

// Handle decodes one entry. A message without run_id in its body takes the
// one carried by the run_id header.
func (h *ScoreLogHandler) Handle(ctx context.Context, b []byte) error {
	var e models.ScoreLogEntry
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordFailure("consumer_unmarshal")
		return fmt.Errorf("decode score log entry: %w", err)
	}
	if e.Symbol == "" || e.Timestamp.IsZero() {
		h.metrics.RecordFailure(models.Reason(models.ErrMissingField))
		return fmt.Errorf("score log entry: %w", models.ErrMissingField)
	}
	if e.RunID == "" {
		e.RunID = pkgkafka.RunIDFrom(ctx)
	}
	if err := h.store.Append(ctx, e); err != nil {
		h.metrics.RecordFailure("score_log_store")
		return fmt.Errorf("store score log entry: %w", err)
	}
	return nil
}
