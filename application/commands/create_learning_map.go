package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
)

// CreateLearningMapCommand creates a learning map under a subject, seeded
// with an empty root article whose content is generated afterwards.
type CreateLearningMapCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=200"`
}

// Validate validates the command
func (cmd CreateLearningMapCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.SubjectID == "" {
		return errors.New("subject ID is required")
	}
	if cmd.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// CreateLearningMapResult carries the created aggregate and its root
type CreateLearningMapResult struct {
	Map  *aggregates.LearningMap
	Root *entities.Article
}

// CreateLearningMapHandler handles the CreateLearningMapCommand
type CreateLearningMapHandler struct {
	mapRepo     ports.LearningMapRepository
	articleRepo ports.ArticleRepository
	subjectRepo ports.SubjectRepository
	eventBus    ports.EventPublisher
	logger      *zap.Logger
}

// NewCreateLearningMapHandler creates a new handler instance
func NewCreateLearningMapHandler(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	subjectRepo ports.SubjectRepository,
	eventBus ports.EventPublisher,
	logger *zap.Logger,
) *CreateLearningMapHandler {
	return &CreateLearningMapHandler{
		mapRepo:     mapRepo,
		articleRepo: articleRepo,
		subjectRepo: subjectRepo,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Handle executes the create learning map command
func (h *CreateLearningMapHandler) Handle(ctx context.Context, cmd CreateLearningMapCommand) (*CreateLearningMapResult, error) {
	subject, err := h.subjectRepo.GetByID(ctx, cmd.SubjectID)
	if err != nil {
		return nil, err
	}

	lm, err := aggregates.NewLearningMap(cmd.SubjectID, cmd.UserID, cmd.Name)
	if err != nil {
		return nil, err
	}

	// The root article starts as a pending placeholder; content generation
	// fills it asynchronously from the subject title.
	root, err := entities.NewArticle(cmd.UserID, lm.ID().String(), true)
	if err != nil {
		return nil, err
	}
	if err := lm.AddRootArticle(root); err != nil {
		return nil, err
	}

	if err := h.mapRepo.Save(ctx, lm); err != nil {
		return nil, err
	}
	if err := h.articleRepo.Save(ctx, root); err != nil {
		return nil, err
	}

	allEvents := lm.GetUncommittedEvents()
	if err := h.eventBus.PublishBatch(ctx, allEvents); err != nil {
		h.logger.Warn("failed to publish map creation events", zap.Error(err))
	}
	lm.MarkEventsAsCommitted()
	root.MarkEventsAsCommitted()

	h.logger.Info("learning map created",
		zap.String("map_id", lm.ID().String()),
		zap.String("subject_id", subject.ID().String()),
		zap.String("root_article_id", root.ID().String()),
	)
	return &CreateLearningMapResult{Map: lm, Root: root}, nil
}
