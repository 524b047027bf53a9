//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"EdgeScan/pkg/config"
	"EdgeScan/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup drains the score log and closes every client.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideHTTPClient,
		ProvideFinnhubClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBytesCache,

		// Repositories
		ProvidePriceStore,
		ProvidePriceSupplier,
		ProvideBoardCache,
		ProvideScoreStores,
		ProvideScoreLogPipeline,
		ProvideEdgeModel,

		// Use cases
		ProvideEdgePipeline,
		ProvideBatchScanner,
		ProvideBacktestRun,
		ProvideIngest,
		ProvideScoreLogHandler,

		// Transport
		ProvideEdgeHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
