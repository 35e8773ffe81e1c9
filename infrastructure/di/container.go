package di

import (
	"learnmap-backend/application/commands"
	"learnmap-backend/application/commands/bus"
	commands_handlers "learnmap-backend/application/commands/handlers"
	"learnmap-backend/application/diagram"
	"learnmap-backend/application/ports"
	querybus "learnmap-backend/application/queries/bus"
	"learnmap-backend/application/services"
	domainconfig "learnmap-backend/domain/config"
	"learnmap-backend/infrastructure/config"
	"learnmap-backend/infrastructure/persistence/dynamodb"
	"learnmap-backend/pkg/auth"
	"learnmap-backend/pkg/extensions"
	"learnmap-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config            *config.Config
	DomainConfig      *domainconfig.DomainConfig
	Logger            *zap.Logger
	ArticleRepo       ports.ArticleRepository
	QuestionRepo      ports.QuestionRepository
	MapRepo           ports.LearningMapRepository
	SubjectRepo       ports.SubjectRepository
	SnapshotStore     ports.LayoutSnapshotStore
	EventBus          ports.EventBus
	EventPublisher    ports.EventPublisher
	EventStore        ports.EventStore
	OutboxProcessor   *dynamodb.OutboxProcessor
	Generator         ports.ContentGenerator
	GenerationService *services.GenerationService
	LayoutEngine      diagram.LayoutEngine
	Orchestrator      *commands_handlers.AskQuestionOrchestrator
	CreateSubject     *commands.CreateSubjectHandler
	CreateMap         *commands.CreateLearningMapHandler
	CommandBus        *bus.CommandBus
	QueryBus          *querybus.QueryBus
	Cache             ports.Cache
	Hooks             *extensions.HookManager
	Metrics           *observability.Metrics
	RateLimiter       *auth.DistributedRateLimiter
	DistributedLock   *dynamodb.DistributedLock
}
