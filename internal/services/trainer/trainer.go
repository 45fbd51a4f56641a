package trainer

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/internal/services/ml"
	"FinCast/internal/services/registry"
	"FinCast/pkg/logger"

	"golang.org/x/sync/semaphore"
)

// TrainFraction is the chronological share of rows used for fitting.
const TrainFraction = 0.8

// Trainer fits timeframe models with a bounded number of concurrent trainings.
type Trainer struct {
	sem     *semaphore.Weighted
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// New returns a Trainer running at most workers fits at once.
func New(workers int, metrics domrepo.Metrics, log *logger.Logger) *Trainer {
	if workers < 1 {
		workers = 1
	}
	return &Trainer{
		sem:     semaphore.NewWeighted(int64(workers)),
		metrics: metrics,
		log:     log.With(logger.String("component", "trainer")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Train fits the profile's family for symbol, waiting for a free worker slot first.
func (t *Trainer) Train(ctx context.Context, symbol string, p registry.Profile, fs *features.FeatureSet) (*ml.TrainedModel, error) {
	return t.TrainFamily(ctx, symbol, p, fs, p.Family, p.Params)
}

// TrainFamily is Train with an explicit estimator family.
func (t *Trainer) TrainFamily(ctx context.Context, symbol string, p registry.Profile, fs *features.FeatureSet, family ml.Family, params ml.Params) (*ml.TrainedModel, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for training slot: %w", err)
	}
	defer t.sem.Release(1)

	start := time.Now()
	m, err := FitFamily(symbol, p, fs, family, params)
	elapsed := time.Since(start)
	if err != nil {
		t.metrics.RecordError("training")
		t.log.Warn("training failed",
			logger.String("symbol", symbol),
			logger.String("timeframe", p.Timeframe.String()),
			logger.String("family", string(family)),
			logger.Error(err))
		return nil, err
	}
	m.TrainedAt = t.now()
	t.metrics.RecordTraining(string(family), p.Timeframe.String(), elapsed.Seconds())
	t.log.Info("model trained",
		logger.String("symbol", symbol),
		logger.String("timeframe", p.Timeframe.String()),
		logger.String("family", string(family)),
		logger.Int("train_samples", m.TrainSamples),
		logger.Int("test_samples", m.TestSamples),
		logger.Float64("r2", m.Metrics.R2),
		logger.Float64("rmse", m.Metrics.RMSE),
		logger.Duration("duration_ms", elapsed))
	return m, nil
}

// Fit trains the profile's family on fs without side effects.
func Fit(symbol string, p registry.Profile, fs *features.FeatureSet) (*ml.TrainedModel, error) {
	return FitFamily(symbol, p, fs, p.Family, p.Params)
}

// FitFamily splits fs chronologically, fits a scaler and estimator on the older part
// and scores the newer part.
func FitFamily(symbol string, p registry.Profile, fs *features.FeatureSet, family ml.Family, params ml.Params) (*ml.TrainedModel, error) {
	X, y := fs.Matrix(), fs.Targets
	n := len(X)
	split := int(TrainFraction * float64(n))
	if test := n - split; split == 0 || test < p.MinTestSamples {
		return nil, &models.InsufficientSamplesError{Timeframe: p.Timeframe.String(), Have: test, Need: p.MinTestSamples}
	}

	scaler := ml.FitScaler(X[:split])
	est, err := ml.New(family, params)
	if err != nil {
		return nil, err
	}
	if err := est.Fit(scaler.TransformAll(X[:split]), y[:split]); err != nil {
		return nil, fmt.Errorf("fit %s: %w", family, err)
	}

	testX := scaler.TransformAll(X[split:])
	pred := make([]float64, len(testX))
	for i, x := range testX {
		pred[i] = est.Predict(x)
	}

	return &ml.TrainedModel{
		Symbol:       symbol,
		Timeframe:    p.Timeframe,
		Family:       family,
		Estimator:    est,
		Scaler:       scaler,
		FeatureNames: append([]string(nil), fs.Names...),
		Metrics:      ml.Evaluate(y[split:], pred),
		Importances:  ml.RankImportances(fs.Names, est),
		TrainedAt:    time.Now().UTC(),
		TrainSamples: split,
		TestSamples:  n - split,
	}, nil
}
