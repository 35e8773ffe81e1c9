package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
)

// CleanupMapResourcesCommand removes the secondary data tied to a deleted
// article: cached map reads, the persisted layout snapshot (now stale), and
// the article's event history.
type CleanupMapResourcesCommand struct {
	LearningMapID string
	ArticleID     string
	UserID        string
}

// Validate validates the command
func (c *CleanupMapResourcesCommand) Validate() error {
	if c.LearningMapID == "" {
		return fmt.Errorf("learning map ID is required")
	}
	if c.ArticleID == "" {
		return fmt.Errorf("article ID is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	return nil
}

// CleanupMapResourcesHandler handles post-deletion cleanup. Every step is
// best effort: a failed step is logged and the rest still run, since all of
// this data regenerates on demand.
type CleanupMapResourcesHandler struct {
	cache      ports.Cache
	snapshots  ports.LayoutSnapshotStore
	eventStore ports.EventStore
	logger     *zap.Logger
}

// NewCleanupMapResourcesHandler creates a new cleanup handler
func NewCleanupMapResourcesHandler(
	cache ports.Cache,
	snapshots ports.LayoutSnapshotStore,
	eventStore ports.EventStore,
	logger *zap.Logger,
) *CleanupMapResourcesHandler {
	return &CleanupMapResourcesHandler{
		cache:      cache,
		snapshots:  snapshots,
		eventStore: eventStore,
		logger:     logger,
	}
}

// Handle executes the cleanup command
func (h *CleanupMapResourcesHandler) Handle(ctx context.Context, cmd *CleanupMapResourcesCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.Delete(ctx, "map:"+cmd.LearningMapID); err != nil {
			h.logger.Warn("failed to invalidate map cache",
				zap.String("map_id", cmd.LearningMapID),
				zap.Error(err),
			)
		}
	}

	if h.snapshots != nil {
		if err := h.snapshots.Delete(ctx, cmd.LearningMapID); err != nil {
			h.logger.Warn("failed to delete layout snapshot",
				zap.String("map_id", cmd.LearningMapID),
				zap.Error(err),
			)
		}
	}

	if h.eventStore != nil {
		if err := h.eventStore.DeleteEvents(ctx, cmd.ArticleID); err != nil {
			h.logger.Warn("failed to delete article events",
				zap.String("article_id", cmd.ArticleID),
				zap.Error(err),
			)
		}
	}

	h.logger.Info("cleaned up resources for deleted article",
		zap.String("map_id", cmd.LearningMapID),
		zap.String("article_id", cmd.ArticleID),
	)
	return nil
}
