//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"FinCast/pkg/config"
	"FinCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvidePrometheus,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	ProvideMetrics,
	ProvideInstanceID,
	ProvideClickHouseClient,
	ProvideRedis,
	ProvideKafkaProducer,
)

var engineSet = wire.NewSet(
	ProvideHistoryProvider,
	ProvideRegistry,
	ProvideTrainer,
	ProvideSynthesizer,
	ProvideModelCache,
	ProvideModelEvents,
	ProvidePredictionUseCase,
)

var transportSet = wire.NewSet(
	ProvideKafkaConsumer,
	ProvideWarmupQueue,
	ProvideLimiter,
	ProvideHandlers,
	ProvideHTTPServer,
	ProvideApp,
)

// InitializeApp wires every dependency. The cleanup closes infrastructure clients
// and must run after App.Run returns.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, engineSet, transportSet)
	return nil, nil, nil
}
