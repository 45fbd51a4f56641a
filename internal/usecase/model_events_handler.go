package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// ModelEventApplier applies a model lifecycle event locally.
type ModelEventApplier interface {
	ApplyEvent(ctx context.Context, ev models.ModelEvent) error
}

// ModelEventsHandler consumes retrain/invalidate events published by other instances.
type ModelEventsHandler struct {
	topic   string
	target  ModelEventApplier
	metrics domrepo.Metrics
}

func NewModelEventsHandler(topic string, target ModelEventApplier, metrics domrepo.Metrics) *ModelEventsHandler {
	return &ModelEventsHandler{topic: topic, target: target, metrics: metrics}
}

func (h *ModelEventsHandler) Topic() string { return h.topic }

// incoming message schema: {type, symbol, timeframe, origin, at}
// Malformed or invalid events are permanent failures and skip retries.
func (h *ModelEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ModelEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode model event: %w", err))
	}
	if !ev.At.IsZero() {
		h.metrics.RecordLatency("model_event_lag", time.Since(ev.At).Seconds())
	}
	if err := h.target.ApplyEvent(ctx, ev); err != nil {
		h.metrics.RecordError("model_event")
		if errors.Is(err, models.ErrInvalidInput) || errors.Is(err, models.ErrUnknownTimeframe) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ModelEventsHandler)(nil)
