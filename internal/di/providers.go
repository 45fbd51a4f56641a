package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/handler/api"
	"FinCast/internal/repository"
	icache "FinCast/internal/service/cache"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/features"
	"FinCast/internal/services/registry"
	"FinCast/internal/services/synth"
	"FinCast/internal/services/trainer"
	"FinCast/internal/usecase"
	pkgcache "FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"
)

// InstanceID identifies this process in model events so it can skip its own.
type InstanceID string

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvidePrometheus returns the registry served on /metrics.
func ProvidePrometheus() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg prometheus.Registerer) domrepo.Metrics {
	return metrics.New(reg)
}

func ProvideInstanceID() InstanceID {
	return InstanceID(uuid.NewString())
}

// ProvideClickHouseClient connects only when ClickHouse is the history source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.MarketData.Source != "clickhouse" {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, repository.CandleSchema(cfg.MarketData.Table)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideHistoryProvider selects the price history source.
func ProvideHistoryProvider(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.HistoryProvider, error) {
	md := cfg.MarketData
	switch md.Source {
	case "static":
		return repository.NewStaticHistoryProvider(md.StaticPath,
			repository.WithExtension(md.Extension),
			repository.WithStaticLogger(l),
		)
	case "yahoo":
		return repository.NewYahooHistoryProvider(repository.YahooConfig{
			BaseURL:  md.Yahoo.BaseURL,
			Suffix:   md.Yahoo.Suffix,
			Timeout:  md.Yahoo.Timeout,
			Attempts: md.Yahoo.Attempts,
			Backoff:  md.Yahoo.Backoff,
		}, l), nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse history source without a client")
		}
		return repository.NewCHHistoryStore(ch, md.Table, l)
	default:
		return nil, fmt.Errorf("unknown market data source %q", md.Source)
	}
}

// ProvideRedis connects the shared model layer when enabled; it returns nil otherwise.
func ProvideRedis(cfg *config.Config, l *applogger.Logger) (*pkgcache.RedisCache, func(), error) {
	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return nil, func() {}, nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(rc.Host),
		pkgcache.WithRedisPort(rc.Port),
		pkgcache.WithRedisPassword(rc.Password),
		pkgcache.WithRedisDB(rc.DB),
		pkgcache.WithRedisPool(rc.PoolSize, rc.PoolSize/2, 5*time.Second),
		pkgcache.WithRedisPrefix(rc.Prefix),
		pkgcache.WithRedisOpTimeout(rc.OpTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			l.Warn("redis close", applogger.Error(err))
		}
	}
	return c, cleanup, nil
}

func ProvideModelCache(cfg *config.Config, rc *pkgcache.RedisCache, m domrepo.Metrics, l *applogger.Logger) *icache.ModelCache {
	var remote pkgcache.Service
	if rc != nil {
		remote = rc
	}
	return icache.NewModelCache(icache.Config{
		TTL:          cfg.Cache.TTL,
		Capacity:     cfg.Cache.Capacity,
		TrainTimeout: cfg.Engine.TrainTimeout,
	}, remote, m, l)
}

// ProvideRegistry applies configured target overrides to the built-in profiles.
func ProvideRegistry(cfg *config.Config) (*registry.Registry, error) {
	opts := make([]registry.Option, 0, len(cfg.Targets))
	for key, t := range cfg.Targets {
		tf, err := domrepo.ParseTimeframe(key)
		if err != nil {
			return nil, fmt.Errorf("targets: %w", err)
		}
		opts = append(opts, registry.WithTargets(tf, registry.Triplet{
			Conservative: t.Conservative,
			Moderate:     t.Moderate,
			Aggressive:   t.Aggressive,
		}))
	}
	return registry.New(opts...), nil
}

func ProvideTrainer(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *trainer.Trainer {
	return trainer.New(cfg.Engine.Workers, m, l)
}

func ProvideSynthesizer(cfg *config.Config) *synth.Synthesizer {
	return synth.New(cfg.Policy)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer, id InstanceID, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	k := cfg.Kafka
	if !k.Enabled {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithOrigin(string(id)),
		pkgkafka.WithProducerMetrics(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			l.Warn("kafka producer close", applogger.Error(err))
		}
	}
	return p, cleanup, nil
}

// ProvideModelEvents returns nil without a producer; the use case then publishes nowhere.
func ProvideModelEvents(cfg *config.Config, p *pkgkafka.Producer, id InstanceID) domrepo.ModelEventPublisher {
	if p == nil {
		return nil
	}
	return repository.NewKafkaModelEvents(p, cfg.Kafka.Topic, string(id))
}

func ProvidePredictionUseCase(
	cfg *config.Config,
	history domrepo.HistoryProvider,
	profiles *registry.Registry,
	tr *trainer.Trainer,
	mc *icache.ModelCache,
	s *synth.Synthesizer,
	events domrepo.ModelEventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.PredictionUseCase {
	return usecase.NewPredictionUseCase(history, profiles, tr, mc, s, m, l,
		usecase.WithFeatureOptions(features.WithMaxGap(cfg.Engine.MaxGap)),
		usecase.WithEvents(events),
	)
}

// ProvideKafkaConsumer subscribes to model events from other instances. Nil when Kafka is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	uc *usecase.PredictionUseCase,
	m domrepo.Metrics,
	reg prometheus.Registerer,
	id InstanceID,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	k := cfg.Kafka
	if !k.Enabled {
		return nil, nil
	}
	groupID := k.Consumer.GroupID
	if groupID == "" {
		// Each instance must see every event, so groups are per instance by default.
		groupID = "fincast-" + string(id)
	}
	c, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(k.Brokers),
		pkgkafka.WithConsumerGroupID(groupID),
		pkgkafka.WithConsumerAutoOffsetReset(k.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(k.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(k.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(k.Consumer.RetryMax, k.Consumer.BackoffMin, k.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(k.Consumer.MinBytes, k.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerMetrics(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.WithConsumerHook(pkgkafka.SkipOrigin(string(id)))
	c.RegisterHandler(usecase.NewModelEventsHandler(k.Topic, uc, m))
	return c, nil
}

// ProvideWarmupQueue runs the warm-up job queue on Redis. Nil unless warm-up is enabled.
func ProvideWarmupQueue(
	cfg *config.Config,
	rc *pkgcache.RedisCache,
	uc *usecase.PredictionUseCase,
	m domrepo.Metrics,
	l *applogger.Logger,
) *queue.Queue {
	w := cfg.Warmup
	if !w.Enabled || rc == nil {
		return nil
	}
	q := queue.New(queue.NewRedisBackend(rc.Client()), queue.Config{
		Workers:    w.Workers,
		RetryLimit: w.RetryLimit,
		RetryDelay: w.RetryDelay,
	}, l, queue.WithKeyPrefix(cfg.Cache.Redis.Prefix+":queue"))
	q.RegisterJob(usecase.NewWarmupJob(uc, m, l))
	return q
}

// ProvideLimiter returns nil when rate limiting is disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func ProvideHandlers(
	uc *usecase.PredictionUseCase,
	mc *icache.ModelCache,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
	q *queue.Queue,
	l *applogger.Logger,
) xhttp.Handler {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = rc.Ping
	}

	handlers := xhttp.Handlers{
		api.NewHealthHandler(mc, checks),
		api.NewPredictionsHandler(l, uc),
	}
	if q != nil {
		handlers = append(handlers, api.NewWarmupHandler(l, func(ctx context.Context, symbols []string, tfs []domrepo.Timeframe) (int, error) {
			return usecase.EnqueueWarmup(ctx, q, symbols, tfs)
		}))
	}
	return handlers
}

func ProvideHTTPServer(
	cfg *config.Config,
	h xhttp.Handler,
	reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
	lim *ratelimit.Limiter,
	l *applogger.Logger,
) *xhttp.Server {
	s := cfg.Server
	opts := []xhttp.ServerOption{
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithCORS(s.CORS),
		xhttp.WithSlowRequest(s.SlowRequest),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, gatherer))
	}
	if lim != nil {
		opts = append(opts, xhttp.WithRateLimit(lim))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp orders the long-running components: queue, consumer, then HTTP.
func ProvideApp(
	cfg *config.Config,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	q *queue.Queue,
	l *applogger.Logger,
) *server.App {
	opts := []server.Option{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if q != nil {
		opts = append(opts, server.WithComponent("warmup_queue", q))
		if len(cfg.Warmup.Symbols) > 0 {
			tfs := make([]domrepo.Timeframe, 0, len(cfg.Warmup.Timeframes))
			for _, raw := range cfg.Warmup.Timeframes {
				tf, err := domrepo.ParseTimeframe(raw)
				if err != nil {
					continue
				}
				tfs = append(tfs, tf)
			}
			opts = append(opts, server.OnStarted(func(ctx context.Context) error {
				n, err := usecase.EnqueueWarmup(ctx, q, cfg.Warmup.Symbols, tfs)
				l.Info("warm-up queued", applogger.Int("jobs", n))
				return err
			}))
		}
	}
	if consumer != nil {
		opts = append(opts, server.WithComponent("kafka_consumer", consumer))
	}
	opts = append(opts, server.WithComponent("http", srv))
	return server.New(l, opts...)
}
