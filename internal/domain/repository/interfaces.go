package repository

import (
	"context"

	"FinCast/internal/domain/models"
)

// HistoryProvider supplies daily price history for a symbol, oldest first.
// lookbackDays is measured in calendar days back from the latest available point.
type HistoryProvider interface {
	GetHistory(ctx context.Context, symbol string, lookbackDays int) ([]models.PricePoint, error)
}

// ModelEventPublisher broadcasts model lifecycle events to other instances.
type ModelEventPublisher interface {
	Publish(ctx context.Context, ev models.ModelEvent) error
	Close() error
}

type Metrics interface {
	RecordTraining(family, timeframe string, seconds float64)
	RecordCacheHit(layer string)
	RecordCacheMiss(layer string)
	RecordError(kind string)
	RecordLastPrediction(symbol, timeframe string, price float64)
	RecordLatency(op string, seconds float64)
}
