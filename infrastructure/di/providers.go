package di

import (
	"context"
	"fmt"
	"time"

	"learnmap-backend/application/commands"
	"learnmap-backend/application/commands/bus"
	commands_handlers "learnmap-backend/application/commands/handlers"
	"learnmap-backend/application/diagram"
	"learnmap-backend/application/ports"
	"learnmap-backend/application/queries"
	querybus "learnmap-backend/application/queries/bus"
	queries_handlers "learnmap-backend/application/queries/handlers"
	"learnmap-backend/application/services"
	domainconfig "learnmap-backend/domain/config"
	"learnmap-backend/domain/events"
	"learnmap-backend/infrastructure/config"
	"learnmap-backend/infrastructure/generation"
	"learnmap-backend/infrastructure/layout"
	"learnmap-backend/infrastructure/messaging"
	"learnmap-backend/infrastructure/messaging/eventbridge"
	"learnmap-backend/infrastructure/messaging/memory"
	"learnmap-backend/infrastructure/persistence/dynamodb"
	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/extensions"
	"learnmap-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideDomainConfig creates the layout tuning parameters for the
// configured environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideArticleRepository creates the DynamoDB article repository
func ProvideArticleRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.ArticleRepository {
	return dynamodb.NewArticleRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideQuestionRepository creates the DynamoDB question repository
func ProvideQuestionRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.QuestionRepository {
	return dynamodb.NewQuestionRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideLearningMapRepository creates the DynamoDB learning map repository
func ProvideLearningMapRepository(
	client *awsdynamodb.Client,
	cfg *config.Config,
	articleRepo *dynamodb.ArticleRepository,
	questionRepo *dynamodb.QuestionRepository,
	logger *zap.Logger,
) ports.LearningMapRepository {
	return dynamodb.NewLearningMapRepository(client, cfg.DynamoDBTable, articleRepo, questionRepo, logger)
}

// ProvideSubjectRepository creates the DynamoDB subject repository
func ProvideSubjectRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.SubjectRepository {
	return dynamodb.NewSubjectRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideLayoutSnapshotStore creates the DynamoDB layout snapshot store
func ProvideLayoutSnapshotStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.LayoutSnapshotStore {
	return dynamodb.NewLayoutSnapshotStore(client, cfg.DynamoDBTable, logger)
}

// ProvideArticleRepositoryPort exposes the article repository through its port
func ProvideArticleRepositoryPort(repo *dynamodb.ArticleRepository) ports.ArticleRepository {
	return repo
}

// ProvideQuestionRepositoryPort exposes the question repository through its port
func ProvideQuestionRepositoryPort(repo *dynamodb.QuestionRepository) ports.QuestionRepository {
	return repo
}

// ProvideEventBus creates the event bus: an in-process bus for same-server
// subscribers (the live diagram hub) that also forwards every event to
// EventBridge when a bus name is configured.
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	local := memory.NewEventBus(logger)
	if cfg.EventBusName == "" {
		return local
	}
	remote := eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
	return &fanoutBus{local: local, remote: remote}
}

// fanoutBus delivers events in process and to EventBridge. Subscriptions are
// local only; remote consumers subscribe through EventBridge rules.
type fanoutBus struct {
	local  *memory.EventBus
	remote ports.EventBus
}

func (b *fanoutBus) Publish(ctx context.Context, event events.DomainEvent) error {
	if err := b.local.Publish(ctx, event); err != nil {
		return err
	}
	return b.remote.Publish(ctx, event)
}

func (b *fanoutBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	if err := b.local.PublishBatch(ctx, batch); err != nil {
		return err
	}
	return b.remote.PublishBatch(ctx, batch)
}

func (b *fanoutBus) Subscribe(eventType string, handler ports.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

func (b *fanoutBus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	return b.local.Unsubscribe(eventType, handler)
}

// ProvideEventPublisher creates the publisher handed to command handlers
// and sessions: bus delivery with outbox fallback, so a failed publish is
// parked for the outbox processor instead of lost
func ProvideEventPublisher(eventBus ports.EventBus, store ports.EventStore, logger *zap.Logger) ports.EventPublisher {
	return messaging.NewOutboxPublisher(eventBus, store, logger)
}

// ProvideDynamoEventStore creates the DynamoDB event store
func ProvideDynamoEventStore(client *awsdynamodb.Client, cfg *config.Config) *dynamodb.DynamoDBEventStore {
	return dynamodb.NewDynamoDBEventStore(client, cfg.DynamoDBTable)
}

// ProvideEventStore exposes the event store through its port
func ProvideEventStore(store *dynamodb.DynamoDBEventStore) ports.EventStore {
	return store
}

// ProvideOutboxProcessor creates the background outbox relay that retries
// events whose publish failed at write time. It publishes through the raw
// bus: relaying through the outbox publisher would re-park failures.
func ProvideOutboxProcessor(
	store *dynamodb.DynamoDBEventStore,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *dynamodb.OutboxProcessor {
	return dynamodb.NewOutboxProcessor(store, eventBus, logger)
}

// ProvideCache selects Redis when configured, an in-process cache otherwise
func ProvideCache(cfg *config.Config, logger *zap.Logger) (ports.Cache, error) {
	cache, err := NewCache(cfg.RedisAddress)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddress != "" {
		logger.Info("using redis cache", zap.String("address", cfg.RedisAddress))
	}
	return cache, nil
}

// ProvideContentGenerator creates the OpenAI-backed article generator
func ProvideContentGenerator(cfg *config.Config, logger *zap.Logger) (ports.ContentGenerator, error) {
	generator, err := generation.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	if err != nil {
		return nil, err
	}
	return generator.WithTracer(observability.NewTracer("learnmap")), nil
}

// ProvideLayoutEngine creates the Graphviz layout engine
func ProvideLayoutEngine(logger *zap.Logger) diagram.LayoutEngine {
	return layout.NewGraphvizEngine(logger)
}

// ProvideGenerationService creates the content generation service
func ProvideGenerationService(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	subjectRepo ports.SubjectRepository,
	generator ports.ContentGenerator,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.GenerationService {
	return services.NewGenerationService(mapRepo, articleRepo, subjectRepo, generator, publisher, logger)
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("Learnmap/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client)
}

// ProvideDistributedRateLimiter creates a distributed rate limiter
func ProvideDistributedRateLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedRateLimiter(
		client,
		cfg.DynamoDBTable,
		100,           // 100 requests
		1*time.Minute, // per minute
		"API",         // key prefix for API rate limiting
	)
}

// ProvideDistributedLock creates a distributed lock instance
func ProvideDistributedLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.DistributedLock {
	return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
}

// ProvideAskQuestionOrchestrator wires the full question-ask flow
func ProvideAskQuestionOrchestrator(
	mapRepo ports.LearningMapRepository,
	eventPublisher ports.EventPublisher,
	generationService *services.GenerationService,
	distributedLock *dynamodb.DistributedLock,
	cfg *config.Config,
	logger *zap.Logger,
) *commands_handlers.AskQuestionOrchestrator {
	return commands_handlers.NewAskQuestionOrchestrator(
		mapRepo,
		eventPublisher,
		generationService,
		distributedLock,
		cfg.AsyncGeneration,
		&zapLoggerAdapter{logger},
	)
}

// ProvideCreateSubjectHandler creates the subject creation handler
func ProvideCreateSubjectHandler(
	subjectRepo ports.SubjectRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *commands.CreateSubjectHandler {
	return commands.NewCreateSubjectHandler(subjectRepo, eventPublisher, logger)
}

// ProvideCreateLearningMapHandler creates the map creation handler
func ProvideCreateLearningMapHandler(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	subjectRepo ports.SubjectRepository,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *commands.CreateLearningMapHandler {
	return commands.NewCreateLearningMapHandler(mapRepo, articleRepo, subjectRepo, eventPublisher, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideHookManager creates the lifecycle hook manager. The cached map view
// goes stale the moment an article is added or removed, so both lifecycle
// hooks drop it; deletion additionally clears the layout snapshot and the
// article's event history through the cleanup command.
func ProvideHookManager(
	cache ports.Cache,
	snapshots ports.LayoutSnapshotStore,
	eventStore ports.EventStore,
	logger *zap.Logger,
) *extensions.HookManager {
	hooks := extensions.NewHookManager()

	invalidateMapCache := func(ctx context.Context, data extensions.HookData) error {
		if data.LearningMapID == "" {
			return nil
		}
		if err := cache.Delete(ctx, "map:"+data.LearningMapID); err != nil {
			logger.Warn("Failed to invalidate map cache",
				zap.String("learning_map_id", data.LearningMapID),
				zap.Error(err),
			)
		}
		return nil
	}
	hooks.Register(extensions.HookArticleCreated, invalidateMapCache)

	cleanupHandler := commands.NewCleanupMapResourcesHandler(cache, snapshots, eventStore, logger)
	hooks.Register(extensions.HookArticleDeleted, func(ctx context.Context, data extensions.HookData) error {
		return cleanupHandler.Handle(ctx, &commands.CleanupMapResourcesCommand{
			LearningMapID: data.LearningMapID,
			ArticleID:     data.ArticleID,
			UserID:        data.UserID,
		})
	})

	return hooks
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	questionRepo ports.QuestionRepository,
	snapshots ports.LayoutSnapshotStore,
	eventStore ports.EventStore,
	eventPublisher ports.EventPublisher,
	generator ports.ContentGenerator,
	orchestrator *commands_handlers.AskQuestionOrchestrator,
	createSubjectHandler *commands.CreateSubjectHandler,
	createMapHandler *commands.CreateLearningMapHandler,
	cache ports.Cache,
	hooks *extensions.HookManager,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger))

	// Register CreateSubjectCommand handler
	commandBus.Register(commands.CreateSubjectCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			createCmd, ok := cmd.(commands.CreateSubjectCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := createSubjectHandler.Handle(ctx, createCmd)
			return err
		},
	})

	// Register CreateLearningMapCommand handler
	commandBus.Register(commands.CreateLearningMapCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			createCmd, ok := cmd.(commands.CreateLearningMapCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := createMapHandler.Handle(ctx, createCmd)
			return err
		},
	})

	// Register AskQuestionCommand with orchestrator
	commandBus.Register(commands.AskQuestionCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			askCmd, ok := cmd.(commands.AskQuestionCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			result, err := orchestrator.Handle(ctx, askCmd)
			if err != nil {
				return err
			}
			hooks.ExecuteAsync(context.WithoutCancel(ctx), extensions.HookArticleCreated, extensions.HookData{
				LearningMapID: askCmd.LearningMapID,
				ArticleID:     result.Article.ID().String(),
				UserID:        askCmd.UserID,
				Operation:     "ask_question",
			})
			return nil
		},
	})

	// Register FillArticleContentCommand handler
	fillHandler := commands.NewFillArticleContentHandler(articleRepo, eventPublisher, logger)
	commandBus.Register(commands.FillArticleContentCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			fillCmd, ok := cmd.(commands.FillArticleContentCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			if err := fillHandler.Handle(ctx, fillCmd); err != nil {
				return err
			}
			hooks.ExecuteAsync(context.WithoutCancel(ctx), extensions.HookContentFilled, extensions.HookData{
				ArticleID: fillCmd.ArticleID,
				Operation: "fill_article_content",
			})
			return nil
		},
	})

	// Register DeriveInsightsCommand handler
	deriveHandler := commands.NewDeriveInsightsHandler(articleRepo, generator, eventPublisher, logger)
	commandBus.Register(commands.DeriveInsightsCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			deriveCmd, ok := cmd.(commands.DeriveInsightsCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			if err := deriveHandler.Handle(ctx, deriveCmd); err != nil {
				return err
			}
			hooks.ExecuteAsync(context.WithoutCancel(ctx), extensions.HookInsightsDerived, extensions.HookData{
				ArticleID: deriveCmd.ArticleID,
				Operation: "derive_insights",
			})
			return nil
		},
	})

	// Register DeleteArticleCommand handler
	deleteHandler := commands.NewDeleteArticleHandler(mapRepo, articleRepo, questionRepo, eventPublisher, logger)
	commandBus.Register(commands.DeleteArticleCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			deleteCmd, ok := cmd.(commands.DeleteArticleCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			if err := deleteHandler.Handle(ctx, deleteCmd); err != nil {
				return err
			}
			hooks.ExecuteAsync(context.WithoutCancel(ctx), extensions.HookArticleDeleted, extensions.HookData{
				LearningMapID: deleteCmd.LearningMapID,
				ArticleID:     deleteCmd.ArticleID,
				UserID:        deleteCmd.UserID,
				Operation:     "delete_article",
			})
			return nil
		},
	})

	// Register SaveLayoutSnapshotCommand handler
	saveLayoutHandler := commands.NewSaveLayoutSnapshotHandler(mapRepo, snapshots, logger)
	commandBus.Register(commands.SaveLayoutSnapshotCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			saveCmd, ok := cmd.(commands.SaveLayoutSnapshotCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			if err := saveLayoutHandler.Handle(ctx, saveCmd); err != nil {
				return err
			}
			hooks.ExecuteAsync(context.WithoutCancel(ctx), extensions.HookLayoutSaved, extensions.HookData{
				LearningMapID: saveCmd.LearningMapID,
				UserID:        saveCmd.UserID,
				Operation:     "save_layout_snapshot",
			})
			return nil
		},
	})

	// Register CleanupMapResourcesCommand handler
	cleanupHandler := commands.NewCleanupMapResourcesHandler(cache, snapshots, eventStore, logger)
	commandBus.Register(&commands.CleanupMapResourcesCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			cleanupCmd, ok := cmd.(*commands.CleanupMapResourcesCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return cleanupHandler.Handle(ctx, cleanupCmd)
		},
	})

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	subjectRepo ports.SubjectRepository,
	snapshots ports.LayoutSnapshotStore,
	domainCfg *domainconfig.DomainConfig,
	cache ports.Cache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()
	instrument := querybus.NewMetricsMiddleware(metricsAdapter{metrics})

	// Register GetLearningMapQuery handler
	getMapHandler := queries.NewGetLearningMapHandler(mapRepo, cache)
	queryBus.Register(queries.GetLearningMapQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetLearningMapQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getMapHandler.Handle(ctx, getQuery)
		},
	})

	// Register GetArticleQuery handler
	getArticleHandler := queries.NewGetArticleHandler(articleRepo)
	queryBus.Register(queries.GetArticleQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetArticleQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getArticleHandler.Handle(ctx, getQuery)
		},
	})

	// Register ListLearningMapsQuery handler
	listMapsHandler := queries.NewListLearningMapsHandler(mapRepo)
	queryBus.Register(queries.ListLearningMapsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListLearningMapsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listMapsHandler.Handle(ctx, listQuery)
		},
	})

	// Register ListSubjectsQuery handler
	listSubjectsHandler := queries.NewListSubjectsHandler(subjectRepo)
	queryBus.Register(queries.ListSubjectsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListSubjectsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listSubjectsHandler.Handle(ctx, listQuery)
		},
	})

	// Register GetMapLayoutQuery handler. Layout is the heaviest read path,
	// so it runs behind the metrics middleware.
	getLayoutHandler := queries_handlers.NewGetMapLayoutHandler(mapRepo, snapshots, domainCfg, logger)
	queryBus.Register(queries.GetMapLayoutQuery{}, instrument.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetMapLayoutQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getLayoutHandler.Handle(ctx, getQuery)
		},
	}))

	return queryBus
}

// metricsAdapter bridges the CloudWatch metrics type to the query bus
// metrics interface
type metricsAdapter struct {
	metrics *observability.Metrics
}

func (a metricsAdapter) StartTimer(metric, label string) querybus.Timer {
	return a.metrics.StartTimer(metric, label)
}

func (a metricsAdapter) Increment(metric, label string) {
	a.metrics.Increment(metric, label)
}

// zapLoggerAdapter adapts zap.Logger to the handlers.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Debug(msg string, fields ...interface{}) {
	a.logger.Debug(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Info(msg string, fields ...interface{}) {
	a.logger.Info(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Error(msg string, fields ...interface{}) {
	a.logger.Error(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) fieldsToZap(fields ...interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			zapFields = append(zapFields, zap.Any(key, fields[i+1]))
		}
	}
	return zapFields
}
