package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/valueobjects"
)

// DeriveInsightsCommand computes and stores summary, takeaways and tooltips
// for an article that already has a body. Runs independently of content
// generation; a failure leaves the article filled but unenriched.
type DeriveInsightsCommand struct {
	ArticleID string `json:"article_id" validate:"required"`
}

// Validate validates the command
func (cmd DeriveInsightsCommand) Validate() error {
	if cmd.ArticleID == "" {
		return errors.New("article ID is required")
	}
	return nil
}

// DeriveInsightsHandler handles the DeriveInsightsCommand
type DeriveInsightsHandler struct {
	articleRepo ports.ArticleRepository
	generator   ports.ContentGenerator
	eventBus    ports.EventPublisher
	logger      *zap.Logger
}

// NewDeriveInsightsHandler creates a new handler instance
func NewDeriveInsightsHandler(
	articleRepo ports.ArticleRepository,
	generator ports.ContentGenerator,
	eventBus ports.EventPublisher,
	logger *zap.Logger,
) *DeriveInsightsHandler {
	return &DeriveInsightsHandler{
		articleRepo: articleRepo,
		generator:   generator,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Handle executes the derive insights command
func (h *DeriveInsightsHandler) Handle(ctx context.Context, cmd DeriveInsightsCommand) error {
	id, err := valueobjects.NewArticleIDFromString(cmd.ArticleID)
	if err != nil {
		return err
	}
	article, err := h.articleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	insights, err := h.generator.DeriveInsights(ctx, article.Content().Body())
	if err != nil {
		// The article keeps working without insights; a later run retries.
		h.logger.Warn("insight derivation failed",
			zap.String("article_id", cmd.ArticleID),
			zap.Error(err),
		)
		return err
	}

	if err := article.DeriveInsights(insights.Summary, insights.Takeaways, insights.Tooltips); err != nil {
		return err
	}
	if err := h.articleRepo.UpdateContent(ctx, article); err != nil {
		return err
	}

	if err := h.eventBus.PublishBatch(ctx, article.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish insight events", zap.Error(err))
	}
	article.MarkEventsAsCommitted()

	h.logger.Info("article insights derived",
		zap.String("article_id", cmd.ArticleID),
		zap.Int("takeaways", len(insights.Takeaways)),
		zap.Int("tooltips", len(insights.Tooltips)),
	)
	return nil
}
