package cache

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/ml"
	pkgcache "FinCast/pkg/cache"
	"FinCast/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const keyPrefix = "model"

// Config bounds the model cache.
type Config struct {
	TTL          time.Duration
	Capacity     int
	TrainTimeout time.Duration
}

// TrainFunc fits a fresh model for one key.
type TrainFunc func(ctx context.Context) (*ml.TrainedModel, error)

// ModelCache keeps trained models per (symbol, timeframe) for TTL after training.
// Concurrent misses on one key share a single training run.
type ModelCache struct {
	store        *pkgcache.Layered[*ml.TrainedModel]
	ttl          time.Duration
	trainTimeout time.Duration
	group        singleflight.Group
	metrics      domrepo.Metrics
	log          *logger.Logger
	now          func() time.Time
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewModelCache builds the cache. remote is the optional L2 and may be nil.
func NewModelCache(cfg Config, remote pkgcache.Service, metrics domrepo.Metrics, log *logger.Logger, opts ...Option) *ModelCache {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if cfg.TrainTimeout <= 0 {
		cfg.TrainTimeout = 2 * time.Minute
	}
	return &ModelCache{
		store: pkgcache.NewLayered[*ml.TrainedModel](remote,
			pkgcache.WithMemoryMaxSize(cfg.Capacity),
			pkgcache.WithMemoryTTL(cfg.TTL),
			pkgcache.WithMemoryClock(o.now),
		),
		ttl:          cfg.TTL,
		trainTimeout: cfg.TrainTimeout,
		metrics:      metrics,
		log:          log.With(logger.String("component", "model_cache")),
		now:          o.now,
	}
}

// Key is the cache key of a (symbol, timeframe) pair.
func Key(symbol string, tf domrepo.Timeframe) string {
	return pkgcache.Key(keyPrefix, symbol, tf.String())
}

// Get returns the live model for the key.
func (c *ModelCache) Get(ctx context.Context, symbol string, tf domrepo.Timeframe) (*ml.TrainedModel, bool) {
	m, layer := c.lookup(ctx, Key(symbol, tf))
	switch layer {
	case pkgcache.LayerMemory:
		c.metrics.RecordCacheHit(string(pkgcache.LayerMemory))
	case pkgcache.LayerRemote:
		c.metrics.RecordCacheMiss(string(pkgcache.LayerMemory))
		c.metrics.RecordCacheHit(string(pkgcache.LayerRemote))
	default:
		c.metrics.RecordCacheMiss(string(pkgcache.LayerMemory))
		if c.store.HasRemote() {
			c.metrics.RecordCacheMiss(string(pkgcache.LayerRemote))
		}
	}
	return m, m != nil
}

func (c *ModelCache) lookup(ctx context.Context, key string) (*ml.TrainedModel, pkgcache.Layer) {
	m, layer, err := c.store.Get(ctx, key)
	if err != nil {
		c.remoteFailed("get", key, err)
	}
	if m == nil || layer == pkgcache.LayerNone {
		return nil, pkgcache.LayerNone
	}
	left := c.remaining(m)
	if left <= 0 {
		c.store.Evict(key)
		return nil, pkgcache.LayerNone
	}
	if layer == pkgcache.LayerRemote {
		c.store.Promote(key, m, left)
	}
	return m, layer
}

// Put stores m under its own key, replacing any previous model.
func (c *ModelCache) Put(ctx context.Context, m *ml.TrainedModel) {
	key := Key(m.Symbol, m.Timeframe)
	left := c.remaining(m)
	if left <= 0 {
		return
	}
	if err := c.store.Set(ctx, key, m, left); err != nil {
		c.remoteFailed("set", key, err)
	}
}

// Invalidate drops the key from every layer.
func (c *ModelCache) Invalidate(ctx context.Context, symbol string, tf domrepo.Timeframe) {
	key := Key(symbol, tf)
	if err := c.store.Delete(ctx, key); err != nil {
		c.remoteFailed("delete", key, err)
	}
}

// Evict drops the key from this instance's memory only.
func (c *ModelCache) Evict(symbol string, tf domrepo.Timeframe) {
	c.store.Evict(Key(symbol, tf))
}

func (c *ModelCache) Len() int {
	return c.store.Len()
}

type flightResult struct {
	model  *ml.TrainedModel
	cached bool
}

// GetOrTrain returns the cached model or trains one. Callers racing on the same key
// wait for one shared run; a waiter gives up after the train timeout, and the key is
// forgotten so the next caller starts a fresh run.
func (c *ModelCache) GetOrTrain(ctx context.Context, symbol string, tf domrepo.Timeframe, train TrainFunc) (*ml.TrainedModel, bool, error) {
	if m, ok := c.Get(ctx, symbol, tf); ok {
		return m, true, nil
	}

	key := Key(symbol, tf)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if m, _ := c.lookup(detached, key); m != nil {
			return flightResult{model: m, cached: true}, nil
		}
		tctx, cancel := context.WithTimeout(detached, c.trainTimeout)
		defer cancel()
		m, err := train(tctx)
		if err != nil {
			return nil, err
		}
		c.Put(detached, m)
		return flightResult{model: m}, nil
	})

	timer := time.NewTimer(c.trainTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(flightResult)
		return r.model, r.cached, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-timer.C:
		c.group.Forget(key)
		c.metrics.RecordError("training_timeout")
		c.log.Warn("training wait timed out",
			logger.String("key", key),
			logger.Duration("timeout_ms", c.trainTimeout))
		return nil, false, fmt.Errorf("train %s: %w", key, models.ErrTrainingTimeout)
	}
}

func (c *ModelCache) remaining(m *ml.TrainedModel) time.Duration {
	return m.TrainedAt.Add(c.ttl).Sub(c.now())
}

func (c *ModelCache) remoteFailed(op, key string, err error) {
	c.metrics.RecordError("cache_l2")
	c.log.Warn("model cache remote layer failed",
		logger.String("op", op),
		logger.String("key", key),
		logger.Error(err))
}
