package handlers

import (
	"context"
	"fmt"
	"time"

	"learnmap-backend/application/commands"
	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/validators"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/infrastructure/persistence/dynamodb"
)

// Logger interface for flexible logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ContentFlow kicks off content generation for a freshly created article.
// Implemented by the application generation service; the orchestrator only
// needs the trigger.
type ContentFlow interface {
	GenerateForArticle(ctx context.Context, learningMapID, articleID string) error
}

// AskQuestionOrchestrator runs the full question-ask flow: admit the
// article/question pair into the aggregate, persist both rows in one
// transaction, publish the events, and trigger content generation for the
// new article. A per-map distributed lock serializes structural writes so
// two concurrent questions cannot both claim the same child slot.
type AskQuestionOrchestrator struct {
	mapRepo         ports.LearningMapRepository
	eventPublisher  ports.EventPublisher
	contentFlow     ContentFlow
	distributedLock *dynamodb.DistributedLock
	validator       *validators.MapValidator
	asyncGeneration bool
	logger          Logger
}

// NewAskQuestionOrchestrator creates a new orchestrator instance
func NewAskQuestionOrchestrator(
	mapRepo ports.LearningMapRepository,
	eventPublisher ports.EventPublisher,
	contentFlow ContentFlow,
	distributedLock *dynamodb.DistributedLock,
	asyncGeneration bool,
	logger Logger,
) *AskQuestionOrchestrator {
	return &AskQuestionOrchestrator{
		mapRepo:         mapRepo,
		eventPublisher:  eventPublisher,
		contentFlow:     contentFlow,
		distributedLock: distributedLock,
		validator:       validators.NewMapValidator(),
		asyncGeneration: asyncGeneration,
		logger:          logger,
	}
}

// Handle orchestrates the question-ask process
func (o *AskQuestionOrchestrator) Handle(ctx context.Context, cmd commands.AskQuestionCommand) (*commands.AskQuestionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	if err := o.validator.ValidateQuestionText(cmd.Text, cmd.IsImplicit); err != nil {
		return nil, err
	}

	release, err := o.lockMap(ctx, cmd.LearningMapID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	lm, err := o.mapRepo.GetByID(ctx, aggregates.LearningMapID(cmd.LearningMapID))
	if err != nil {
		return nil, fmt.Errorf("failed to load learning map: %w", err)
	}
	if lm.UserID() != cmd.UserID {
		return nil, fmt.Errorf("learning map does not belong to user")
	}

	parentID, err := valueobjects.NewArticleIDFromString(cmd.ParentArticleID)
	if err != nil {
		return nil, err
	}
	if _, err := lm.GetArticle(parentID); err != nil {
		return nil, fmt.Errorf("parent article not in map: %w", err)
	}

	article, err := entities.NewArticle(cmd.UserID, cmd.LearningMapID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create article: %w", err)
	}
	question, err := entities.NewQuestion(cmd.LearningMapID, parentID, article.ID(), cmd.Text, cmd.IsImplicit)
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	if err := o.validator.ValidateQuestionLink(parentID, article.ID(), lm.Questions()); err != nil {
		return nil, err
	}

	if err := lm.AddArticleWithQuestion(article, question); err != nil {
		return nil, err
	}

	// Both rows land together or not at all.
	if err := o.mapRepo.CreateArticleFromQuestion(ctx, lm, article, question); err != nil {
		return nil, fmt.Errorf("failed to persist question pair: %w", err)
	}

	events := article.GetUncommittedEvents()
	events = append(events, question.GetUncommittedEvents()...)
	if len(events) > 0 {
		if err := o.eventPublisher.PublishBatch(ctx, events); err != nil {
			o.logger.Error("Failed to publish domain events",
				"error", err,
				"eventCount", len(events),
				"questionID", question.ID().String(),
			)
		} else {
			article.MarkEventsAsCommitted()
			question.MarkEventsAsCommitted()
		}
	}

	o.triggerGeneration(ctx, cmd.LearningMapID, article.ID().String())

	o.logger.Info("Question asked",
		"questionID", question.ID().String(),
		"articleID", article.ID().String(),
		"mapID", cmd.LearningMapID,
		"userID", cmd.UserID,
	)
	return &commands.AskQuestionResult{Question: question, Article: article}, nil
}

// lockMap serializes structural writes per learning map. Without a lock
// configured (memory persistence, tests) it is a no-op.
func (o *AskQuestionOrchestrator) lockMap(ctx context.Context, mapID, userID string) (func(), error) {
	if o.distributedLock == nil {
		return func() {}, nil
	}

	resource := fmt.Sprintf("map_structure_%s", mapID)
	lock, err := o.distributedLock.TryAcquireLock(ctx, resource, userID, 30*time.Second, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire map lock: %w", err)
	}
	return func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			o.logger.Error("Failed to release distributed lock",
				"resource", resource,
				"error", releaseErr,
			)
		}
	}, nil
}

// triggerGeneration starts content generation for the new article. The
// question flow never fails on generation problems; the article just stays
// pending until a retry.
func (o *AskQuestionOrchestrator) triggerGeneration(ctx context.Context, mapID, articleID string) {
	if o.contentFlow == nil {
		return
	}

	if o.asyncGeneration {
		go func() {
			genCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := o.contentFlow.GenerateForArticle(genCtx, mapID, articleID); err != nil {
				o.logger.Error("Async content generation failed",
					"articleID", articleID,
					"error", err,
				)
			}
		}()
		return
	}

	if err := o.contentFlow.GenerateForArticle(ctx, mapID, articleID); err != nil {
		o.logger.Error("Content generation failed",
			"articleID", articleID,
			"error", err,
		)
	}
}
