package repository

import (
	"context"
	"fmt"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaModelEvents publishes model lifecycle events keyed by symbol.
type KafkaModelEvents struct {
	producer *pkgkafka.Producer
	topic    string
	origin   string
}

// NewKafkaModelEvents creates a Kafka model event publisher. origin identifies this
// instance so its own events can be skipped on consume.
func NewKafkaModelEvents(producer *pkgkafka.Producer, topic, origin string) repository.ModelEventPublisher {
	return &KafkaModelEvents{producer: producer, topic: topic, origin: origin}
}

func (p *KafkaModelEvents) Publish(ctx context.Context, ev models.ModelEvent) error {
	if ev.Origin == "" {
		ev.Origin = p.origin
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaModelEvents) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
