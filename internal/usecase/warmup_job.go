package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/logger"
	"FinCast/pkg/queue"
	"FinCast/pkg/util"
)

// WarmupJobType names model warm-up messages on the job queue.
const WarmupJobType = "model.warmup"

// WarmupPayload asks a worker to train one (symbol, timeframe) model.
type WarmupPayload struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// Warmer trains a model into the cache.
type Warmer interface {
	Warm(ctx context.Context, symbol string, tf domrepo.Timeframe) (bool, error)
}

// Enqueuer stores a job message.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any) error
}

// WarmupJob trains queued keys. Inputs that can never succeed are dead-lettered at once.
type WarmupJob struct {
	warmer  Warmer
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewWarmupJob(w Warmer, metrics domrepo.Metrics, l *logger.Logger) *WarmupJob {
	return &WarmupJob{warmer: w, metrics: metrics, log: l.With(logger.String("job", WarmupJobType))}
}

func (j *WarmupJob) Type() string { return WarmupJobType }

func (j *WarmupJob) Handle(ctx context.Context, raw json.RawMessage) error {
	p, err := queue.Decode[WarmupPayload](raw)
	if err != nil {
		return queue.Permanent(err)
	}
	tf, err := domrepo.ParseTimeframe(p.Timeframe)
	if err != nil {
		return queue.Permanent(err)
	}
	cached, err := j.warmer.Warm(ctx, p.Symbol, tf)
	if err != nil {
		j.metrics.RecordError("warmup")
		if permanentWarmupError(err) {
			return queue.Permanent(err)
		}
		return err
	}
	j.log.Info("model warm",
		logger.String("symbol", p.Symbol),
		logger.String("timeframe", tf.String()),
		logger.Bool("cached", cached))
	return nil
}

func permanentWarmupError(err error) bool {
	return errors.Is(err, models.ErrInvalidInput) ||
		errors.Is(err, models.ErrUnknownTimeframe) ||
		errors.Is(err, models.ErrSymbolNotFound) ||
		errors.Is(err, models.ErrInsufficientHistory) ||
		errors.Is(err, models.ErrInsufficientSamples)
}

// EnqueueWarmup queues one job per symbol and timeframe. No timeframes means all of them.
func EnqueueWarmup(ctx context.Context, q Enqueuer, symbols []string, tfs []domrepo.Timeframe) (int, error) {
	if len(tfs) == 0 {
		tfs = domrepo.AllTimeframes()
	}
	norm := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		symbol, ok := util.NormalizeSymbol(raw)
		if !ok {
			return 0, &models.InvalidInputError{Field: "symbols", Reason: fmt.Sprintf("%q is not a ticker", raw)}
		}
		norm = append(norm, symbol)
	}
	n := 0
	for _, symbol := range norm {
		for _, tf := range tfs {
			if err := q.Enqueue(ctx, WarmupJobType, WarmupPayload{Symbol: symbol, Timeframe: tf.String()}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
