package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/validators"
	"learnmap-backend/domain/core/valueobjects"
)

// FillArticleContentCommand writes generated body text into a pending
// article. Content arrives as one logical batch; a redundant fill with the
// same body is a no-op.
type FillArticleContentCommand struct {
	ArticleID string `json:"article_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

// Validate validates the command
func (cmd FillArticleContentCommand) Validate() error {
	if cmd.ArticleID == "" {
		return errors.New("article ID is required")
	}
	if cmd.Content == "" {
		return errors.New("content is required")
	}
	return nil
}

// FillArticleContentHandler handles the FillArticleContentCommand
type FillArticleContentHandler struct {
	articleRepo ports.ArticleRepository
	eventBus    ports.EventPublisher
	validator   *validators.MapValidator
	logger      *zap.Logger
}

// NewFillArticleContentHandler creates a new handler instance
func NewFillArticleContentHandler(
	articleRepo ports.ArticleRepository,
	eventBus ports.EventPublisher,
	logger *zap.Logger,
) *FillArticleContentHandler {
	return &FillArticleContentHandler{
		articleRepo: articleRepo,
		eventBus:    eventBus,
		validator:   validators.NewMapValidator(),
		logger:      logger,
	}
}

// Handle executes the fill content command
func (h *FillArticleContentHandler) Handle(ctx context.Context, cmd FillArticleContentCommand) error {
	id, err := valueobjects.NewArticleIDFromString(cmd.ArticleID)
	if err != nil {
		return err
	}
	article, err := h.articleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	content, err := valueobjects.NewArticleContent(cmd.Content)
	if err != nil {
		return err
	}
	if err := h.validator.ValidateArticleContent(content); err != nil {
		return err
	}
	if err := article.FillContent(content); err != nil {
		return err
	}

	if err := h.articleRepo.UpdateContent(ctx, article); err != nil {
		return err
	}

	if err := h.eventBus.PublishBatch(ctx, article.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish content events", zap.Error(err))
	}
	article.MarkEventsAsCommitted()

	h.logger.Info("article content filled",
		zap.String("article_id", cmd.ArticleID),
		zap.Int("word_count", article.Content().WordCount()),
	)
	return nil
}
