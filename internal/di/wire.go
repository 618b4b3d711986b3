//go:build wireinject
// +build wireinject

package di

import (
	"CreditLens/pkg/config"
	"CreditLens/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideObservationStore,
		ProvideSnapshotStore,
		ProvideScoreStore,
		ProvideDocumentStore,
		ProvideScorePublisher,

		// Domain services
		ProvideFeatureSchema,
		ProvideRegistry,
		ProvideCoordinator,

		// Use cases
		ProvideIngestUseCase,
		ProvideIngestPipeline,
		ProvideScorePipeline,
		ProvideClassScores,
		ProvideObservationsHandler,
		ProvideRetrainQueue,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
