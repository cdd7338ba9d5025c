//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"GreyPulse/pkg/config"
	"GreyPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(ctx context.Context, cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvideObservationStore,
		ProvideSpikePublisher,

		// Core pipeline
		ProvideWeightTable,
		ProvideValidator,
		ProvideSources,
		ProvideOrchestrator,
		ProvideValidationRun,
		ProvideScheduler,

		// HTTP API and application
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
