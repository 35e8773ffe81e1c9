//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"learnmap-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideArticleRepository,
	ProvideQuestionRepository,
	ProvideArticleRepositoryPort,
	ProvideQuestionRepositoryPort,
	ProvideLearningMapRepository,
	ProvideSubjectRepository,
	ProvideLayoutSnapshotStore,
	ProvideEventBus,
	ProvideEventPublisher,
	ProvideDynamoEventStore,
	ProvideEventStore,
	ProvideOutboxProcessor,
	ProvideCache,
	ProvideContentGenerator,
	ProvideLayoutEngine,
	ProvideGenerationService,
	ProvideMetrics,
	ProvideDistributedRateLimiter,
	ProvideDistributedLock,
	ProvideAskQuestionOrchestrator,
	ProvideCreateSubjectHandler,
	ProvideCreateLearningMapHandler,
	ProvideHookManager,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
