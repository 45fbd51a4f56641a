package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/service/cache"
	"FinCast/internal/services/features"
	"FinCast/internal/services/forecast"
	"FinCast/internal/services/ml"
	"FinCast/internal/services/registry"
	"FinCast/internal/services/synth"
	"FinCast/internal/services/trainer"
	"FinCast/pkg/logger"
	"FinCast/pkg/util"
)

const defaultTopImportances = 10

// compareFamilies are trained side by side by Compare, in display order.
var compareFamilies = []ml.Family{ml.RandomForestFamily, ml.GradientBoostingFamily, ml.RidgeFamily}

// PredictionUseCase ties history, features, training, caching, forecasting and policy
// synthesis into the request-level operations.
type PredictionUseCase struct {
	history    domrepo.HistoryProvider
	profiles   *registry.Registry
	trainer    *trainer.Trainer
	models     *cache.ModelCache
	forecaster *forecast.Forecaster
	synth      *synth.Synthesizer
	events     domrepo.ModelEventPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger
	featOpts   []features.Option
	now        func() time.Time
}

// PredictionOption customizes PredictionUseCase.
type PredictionOption func(*PredictionUseCase)

// WithFeatureOptions forwards options to the feature builder.
func WithFeatureOptions(opts ...features.Option) PredictionOption {
	return func(uc *PredictionUseCase) { uc.featOpts = append(uc.featOpts, opts...) }
}

// WithEvents sets the model event publisher.
func WithEvents(p domrepo.ModelEventPublisher) PredictionOption {
	return func(uc *PredictionUseCase) {
		if p != nil {
			uc.events = p
		}
	}
}

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) PredictionOption {
	return func(uc *PredictionUseCase) { uc.now = now }
}

func NewPredictionUseCase(
	history domrepo.HistoryProvider,
	profiles *registry.Registry,
	tr *trainer.Trainer,
	mc *cache.ModelCache,
	s *synth.Synthesizer,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...PredictionOption,
) *PredictionUseCase {
	uc := &PredictionUseCase{
		history:    history,
		profiles:   profiles,
		trainer:    tr,
		models:     mc,
		forecaster: forecast.New(mc, profiles),
		synth:      s,
		events:     nopEvents{},
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// prepared is the per-request training input of one (symbol, timeframe).
type prepared struct {
	symbol  string
	profile registry.Profile
	fs      *features.FeatureSet
}

func (uc *PredictionUseCase) prepare(ctx context.Context, rawSymbol string, tf domrepo.Timeframe) (*prepared, error) {
	symbol, ok := util.NormalizeSymbol(rawSymbol)
	if !ok {
		return nil, &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}
	}
	p, err := uc.profiles.Resolve(tf)
	if err != nil {
		return nil, err
	}
	history, err := uc.history.GetHistory(ctx, symbol, p.LookbackDays)
	if err != nil {
		uc.metrics.RecordError("history")
		return nil, fmt.Errorf("load history %s: %w", symbol, err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, models.ErrSymbolNotFound)
	}
	fs, err := features.Build(history, p.TargetShift, uc.featOpts...)
	if err != nil {
		return nil, err
	}
	return &prepared{symbol: symbol, profile: p, fs: fs}, nil
}

func (uc *PredictionUseCase) trainFunc(pr *prepared) cache.TrainFunc {
	return func(ctx context.Context) (*ml.TrainedModel, error) {
		return uc.trainer.Train(ctx, pr.symbol, pr.profile, pr.fs)
	}
}

// Predict returns the forecast report for one symbol and timeframe, training on a cache miss.
func (uc *PredictionUseCase) Predict(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.PredictionReport, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("predict", time.Since(start).Seconds()) }()

	pr, err := uc.prepare(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	m, cached, err := uc.models.GetOrTrain(ctx, pr.symbol, tf, uc.trainFunc(pr))
	if err != nil {
		return nil, err
	}

	preds, err := uc.forecaster.Forecast(ctx, pr.symbol, tf, pr.fs.Latest, pr.fs.Anchor)
	if errors.Is(err, models.ErrModelNotTrained) {
		// Evicted between training and forecasting.
		preds = forecast.Project(m, pr.profile, pr.fs.Latest.Values, pr.fs.Anchor)
	} else if err != nil {
		return nil, err
	}

	current := pr.fs.Anchor.CurrentPrice
	s, err := uc.synth.Synthesize(current, preds, pr.profile, m.Metrics)
	if err != nil {
		return nil, err
	}
	uc.metrics.RecordLastPrediction(pr.symbol, tf.String(), preds[len(preds)-1].Predicted)

	return &models.PredictionReport{
		Symbol:           pr.symbol,
		Timeframe:        tf.String(),
		CurrentPrice:     current,
		Predictions:      preds,
		ModelMetrics:     m.Metrics,
		Trend:            s.Trend,
		PriceTargets:     s.Targets,
		Recommendation:   s.Recommendation,
		Confidence:       s.Confidence,
		PredictionPoints: len(preds),
		Model:            m.Family.DisplayName(),
		Cached:           cached,
		TrainedAt:        m.TrainedAt,
	}, nil
}

// Compare trains every estimator family on the same features and ranks them by R².
// Models trained here are not cached.
func (uc *PredictionUseCase) Compare(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.ModelComparison, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("compare", time.Since(start).Seconds()) }()

	pr, err := uc.prepare(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ModelComparisonEntry, len(compareFamilies))
	g, gctx := errgroup.WithContext(ctx)
	for i, family := range compareFamilies {
		g.Go(func() error {
			m, err := uc.trainer.TrainFamily(gctx, pr.symbol, pr.profile, pr.fs, family, registry.DefaultParams(family))
			if err != nil {
				return fmt.Errorf("%s: %w", family, err)
			}
			preds := forecast.Project(m, pr.profile, pr.fs.Latest.Values, pr.fs.Anchor)
			s, err := uc.synth.Synthesize(pr.fs.Anchor.CurrentPrice, preds, pr.profile, m.Metrics)
			if err != nil {
				return fmt.Errorf("%s: %w", family, err)
			}
			metrics := m.Metrics
			entries[i] = models.ModelComparisonEntry{
				Name:           family.DisplayName(),
				Family:         string(family),
				Metrics:        &metrics,
				Recommendation: s.Recommendation,
				Confidence:     s.Confidence,
				Available:      true,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &models.ModelComparison{Symbol: pr.symbol, Timeframe: tf.String(), Models: entries}
	best := -1
	for i, e := range entries {
		if best < 0 || e.Metrics.R2 > entries[best].Metrics.R2 {
			best = i
		}
	}
	if best >= 0 {
		out.BestModel = entries[best].Name
		out.BestR2 = entries[best].Metrics.R2
	}
	out.Models = append(out.Models, models.ModelComparisonEntry{
		Name:      "CNN",
		Family:    "cnn",
		Available: false,
		Note:      "deep learning models are not available in this build",
	})
	return out, nil
}

// Analyze predicts every timeframe concurrently. A failing timeframe is reported in
// Errors and leaves its prediction nil; only a symbol with no data at all fails the call.
func (uc *PredictionUseCase) Analyze(ctx context.Context, symbol string) (*models.TimeframeAnalysis, error) {
	start := time.Now()
	defer func() { uc.metrics.RecordLatency("analyze", time.Since(start).Seconds()) }()

	norm, ok := util.NormalizeSymbol(symbol)
	if !ok {
		return nil, &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}
	}

	tfs := domrepo.AllTimeframes()
	reports := make([]*models.PredictionReport, len(tfs))
	errs := make([]error, len(tfs))
	var g errgroup.Group
	for i, tf := range tfs {
		g.Go(func() error {
			reports[i], errs[i] = uc.Predict(ctx, norm, tf)
			return nil
		})
	}
	_ = g.Wait()

	out := &models.TimeframeAnalysis{
		Symbol:      norm,
		Predictions: make(map[string]*models.PredictionReport, len(tfs)),
		Timestamp:   uc.now().UTC(),
	}
	notFound := 0
	for i, tf := range tfs {
		out.Predictions[tf.String()] = reports[i]
		if errs[i] != nil {
			if out.Errors == nil {
				out.Errors = make(map[string]string)
			}
			out.Errors[tf.String()] = errs[i].Error()
			if errors.Is(errs[i], models.ErrSymbolNotFound) {
				notFound++
			}
			uc.log.Warn("timeframe analysis failed",
				logger.String("symbol", norm),
				logger.String("timeframe", tf.String()),
				logger.Error(errs[i]))
			continue
		}
		if out.CurrentPrice == 0 {
			out.CurrentPrice = reports[i].CurrentPrice
		}
	}
	if notFound == len(tfs) {
		return nil, errs[0]
	}
	return out, nil
}

// Refresh discards the cached model, retrains it and tells other instances to drop theirs.
func (uc *PredictionUseCase) Refresh(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.RefreshResult, error) {
	pr, err := uc.prepare(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	uc.models.Invalidate(ctx, pr.symbol, tf)
	m, _, err := uc.models.GetOrTrain(ctx, pr.symbol, tf, uc.trainFunc(pr))
	if err != nil {
		return nil, err
	}
	uc.publish(ctx, models.EventRetrain, pr.symbol, tf)
	uc.log.Info("model refreshed",
		logger.String("symbol", pr.symbol),
		logger.String("timeframe", tf.String()),
		logger.Float64("r2", m.Metrics.R2))

	return &models.RefreshResult{
		Symbol:       pr.symbol,
		Timeframe:    tf.String(),
		Model:        m.Family.DisplayName(),
		Metrics:      m.Metrics,
		TrainSamples: m.TrainSamples,
		TestSamples:  m.TestSamples,
		TrainedAt:    m.TrainedAt,
	}, nil
}

// Warm trains and caches the model of one key unless it is cached already.
func (uc *PredictionUseCase) Warm(ctx context.Context, symbol string, tf domrepo.Timeframe) (bool, error) {
	pr, err := uc.prepare(ctx, symbol, tf)
	if err != nil {
		return false, err
	}
	_, cached, err := uc.models.GetOrTrain(ctx, pr.symbol, tf, uc.trainFunc(pr))
	return cached, err
}

// Invalidate drops the cached model in every layer and on other instances.
func (uc *PredictionUseCase) Invalidate(ctx context.Context, symbol string, tf domrepo.Timeframe) error {
	norm, ok := util.NormalizeSymbol(symbol)
	if !ok {
		return &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}
	}
	if _, err := uc.profiles.Resolve(tf); err != nil {
		return err
	}
	uc.models.Invalidate(ctx, norm, tf)
	uc.publish(ctx, models.EventInvalidate, norm, tf)
	return nil
}

// Importance lists the top feature importances of the cached model.
func (uc *PredictionUseCase) Importance(ctx context.Context, symbol string, tf domrepo.Timeframe, top int) (*models.ImportanceReport, error) {
	norm, ok := util.NormalizeSymbol(symbol)
	if !ok {
		return nil, &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}
	}
	if _, err := uc.profiles.Resolve(tf); err != nil {
		return nil, err
	}
	if top <= 0 {
		top = defaultTopImportances
	}
	m, ok := uc.models.Get(ctx, norm, tf)
	if !ok {
		return nil, &models.ModelNotTrainedError{Symbol: norm, Timeframe: tf.String()}
	}
	return &models.ImportanceReport{
		Symbol:      norm,
		Timeframe:   tf.String(),
		Model:       m.Family.DisplayName(),
		Importances: m.TopImportances(top),
	}, nil
}

// ApplyEvent reacts to a model event from another instance. Only the local memory layer
// is dropped: the sender already rewrote or cleared the shared layer.
func (uc *PredictionUseCase) ApplyEvent(_ context.Context, ev models.ModelEvent) error {
	norm, ok := util.NormalizeSymbol(ev.Symbol)
	if !ok {
		return &models.InvalidInputError{Field: "symbol", Reason: "must be a ticker"}
	}
	tfs := domrepo.AllTimeframes()
	if ev.Timeframe != "" {
		tf, err := domrepo.ParseTimeframe(ev.Timeframe)
		if err != nil {
			return err
		}
		tfs = []domrepo.Timeframe{tf}
	}
	switch ev.Type {
	case models.EventRetrain, models.EventInvalidate:
		for _, tf := range tfs {
			uc.models.Evict(norm, tf)
		}
	default:
		return &models.InvalidInputError{Field: "type", Reason: fmt.Sprintf("unsupported event %q", ev.Type)}
	}
	uc.log.Debug("model event applied",
		logger.String("type", ev.Type),
		logger.String("symbol", norm),
		logger.String("origin", ev.Origin))
	return nil
}

func (uc *PredictionUseCase) publish(ctx context.Context, typ, symbol string, tf domrepo.Timeframe) {
	err := uc.events.Publish(ctx, models.ModelEvent{
		Type:      typ,
		Symbol:    symbol,
		Timeframe: tf.String(),
		At:        uc.now().UTC(),
	})
	if err != nil {
		uc.metrics.RecordError("event_publish")
		uc.log.Warn("publish model event",
			logger.String("type", typ),
			logger.String("symbol", symbol),
			logger.Error(err))
	}
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, models.ModelEvent) error { return nil }
func (nopEvents) Close() error                                     { return nil }
