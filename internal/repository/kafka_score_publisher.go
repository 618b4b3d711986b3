package repository

import (
	"context"
	"fmt"

	"CreditLens/internal/domain/models"
	domrepo "CreditLens/internal/domain/repository"
	pkgkafka "CreditLens/pkg/kafka"
)

// KafkaScorePublisher emits score bundles on the score events topic, keyed by
// issuer so consumers see per-issuer ordering.
type KafkaScorePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaScorePublisher(producer *pkgkafka.Producer, topic string) *KafkaScorePublisher {
	return &KafkaScorePublisher{producer: producer, topic: topic}
}

func (p *KafkaScorePublisher) Publish(ctx context.Context, bundle models.ScoreBundle) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(bundle.IssuerID), bundle); err != nil {
		return fmt.Errorf("publish score event: %w", err)
	}
	return nil
}

func (p *KafkaScorePublisher) Close() error { return p.producer.Close() }

var _ domrepo.ScorePublisher = (*KafkaScorePublisher)(nil)
