package repository

import (
	"context"
	"fmt"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	pkgkafka "EdgeScan/pkg/kafka"
)

// Publisher is the part of the Kafka producer the score log needs.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaScoreLog publishes score log entries keyed by symbol, so all
// entries of one symbol land on one partition in order.
type KafkaScoreLog struct {
	pub   Publisher
	topic string
}

var _ domrepo.ScoreLog = (*KafkaScoreLog)(nil)

func NewKafkaScoreLog(pub Publisher, topic string) *KafkaScoreLog {
	return &KafkaScoreLog{pub: pub, topic: topic}
}

func (k *KafkaScoreLog) Append(ctx context.Context, e models.ScoreLogEntry) error {
	msg := pkgkafka.Message{
		Key:     []byte(e.Symbol),
		Value:   e,
		Headers: map[string]string{pkgkafka.RunIDHeader: e.RunID},
	}
	if err := k.pub.PublishBatch(ctx, k.topic, []pkgkafka.Message{msg}); err != nil {
		return fmt.Errorf("publish score log %s: %w", e.Symbol, err)
	}
	return nil
}

func (k *KafkaScoreLog) Close() error {
	if k.pub == nil {
		return nil
	}
	return k.pub.Close()
}
