package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/valueobjects"
)

// DeleteArticleCommand removes an article from a map. Administrative escape
// hatch: the normal flow is append-only, deletion exists for cleanup.
type DeleteArticleCommand struct {
	UserID        string `json:"user_id" validate:"required"`
	LearningMapID string `json:"learning_map_id" validate:"required"`
	ArticleID     string `json:"article_id" validate:"required"`
}

// Validate validates the command
func (cmd DeleteArticleCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.LearningMapID == "" {
		return errors.New("learning map ID is required")
	}
	if cmd.ArticleID == "" {
		return errors.New("article ID is required")
	}
	return nil
}

// DeleteArticleHandler handles the DeleteArticleCommand
type DeleteArticleHandler struct {
	mapRepo      ports.LearningMapRepository
	articleRepo  ports.ArticleRepository
	questionRepo ports.QuestionRepository
	eventBus     ports.EventPublisher
	logger       *zap.Logger
}

// NewDeleteArticleHandler creates a new handler instance
func NewDeleteArticleHandler(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	questionRepo ports.QuestionRepository,
	eventBus ports.EventPublisher,
	logger *zap.Logger,
) *DeleteArticleHandler {
	return &DeleteArticleHandler{
		mapRepo:      mapRepo,
		articleRepo:  articleRepo,
		questionRepo: questionRepo,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// Handle executes the delete article command
func (h *DeleteArticleHandler) Handle(ctx context.Context, cmd DeleteArticleCommand) error {
	lm, err := h.mapRepo.GetByID(ctx, aggregates.LearningMapID(cmd.LearningMapID))
	if err != nil {
		return err
	}

	articleID, err := valueobjects.NewArticleIDFromString(cmd.ArticleID)
	if err != nil {
		return err
	}
	article, err := lm.GetArticle(articleID)
	if err != nil {
		return err
	}

	// Snapshot the question set before the aggregate drops the subtree,
	// so the row deletes below match what the aggregate removed.
	before := lm.Questions()

	removed, err := lm.RemoveArticle(articleID)
	if err != nil {
		return err
	}

	removedSet := make(map[valueobjects.ArticleID]bool, len(removed))
	for _, id := range removed {
		removedSet[id] = true
	}
	var doomed []valueobjects.QuestionID
	for _, q := range before {
		if removedSet[q.ChildArticleID()] || removedSet[q.ParentArticleID()] {
			doomed = append(doomed, q.ID())
		}
	}

	for _, qid := range doomed {
		if err := h.questionRepo.Delete(ctx, qid); err != nil {
			h.logger.Error("failed to delete question row",
				zap.String("question_id", qid.String()),
				zap.Error(err),
			)
			return err
		}
	}
	for _, id := range removed {
		if err := h.articleRepo.Delete(ctx, id); err != nil {
			return err
		}
	}

	article.MarkDeleted(cmd.UserID)
	if err := h.eventBus.PublishBatch(ctx, article.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish deletion events", zap.Error(err))
	}
	article.MarkEventsAsCommitted()

	h.logger.Info("article deleted",
		zap.String("map_id", cmd.LearningMapID),
		zap.String("article_id", cmd.ArticleID),
		zap.Int("questions_removed", len(doomed)),
	)
	return nil
}
