//go:build wireinject
// +build wireinject

package di

import (
	"flowgate/pkg/config"
	"flowgate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Backend access
		ProvideUpstream,
		ProvideGuard,

		// Console and auth support
		ProvideConsoleRegistry,
		ProvideRedis,
		ProvideRateLimiter,
		ProvideKafkaProducer,
		ProvideAuditPublisher,
		ProvideAlertStreamer,

		// Route surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
