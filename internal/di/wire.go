//go:build wireinject
// +build wireinject

package di

import (
	"DefiGuard/pkg/config"
	"DefiGuard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
    wire.Build(
        // Metrics
        ProvideRegisterer,
        ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideAuditStore,
		ProvideRedisCache,
		ProvideCache,
		ProvideAuditQueue,
		ProvideKafkaConsumer,

		// Repositories
		ProvideAptosClient,
		ProvideHistoryProvider,
		ProvideTrustProvider,
		ProvidePoolProvider,
		ProvideAuditSink,
		ProvideSubmitter,

		// Engines
		ProvideVerifier,
		ProvideScorer,
		ProvideRuleDetector,
		ProvideZScoreDetector,
		ProvideLiquidityOptimizer,

        // Use cases
        ProvideAuditor,
        ProvideMonitor,
        ProvideAssessor,
        ProvidePoolOptimizer,
        ProvidePoolPipeline,
        ProvidePoolMetricsHandler,
        ProvideCaptureStore,
        ProvideLimiter,

        // Application server
        ProvideHandlers,
        ProvideApp,
    )
    return nil, nil, nil
}
