package handlers

import (
	"encoding/json"
	"net/http"

	"learnmap-backend/application/commands"
	commandbus "learnmap-backend/application/commands/bus"
	"learnmap-backend/application/queries"
	querybus "learnmap-backend/application/queries/bus"
	"learnmap-backend/pkg/auth"
	apperrors "learnmap-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ArticleHandler handles article-related HTTP requests
type ArticleHandler struct {
	commandBus *commandbus.CommandBus
	queryBus   *querybus.QueryBus
	logger     *zap.Logger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(
	commandBus *commandbus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *ArticleHandler {
	return &ArticleHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

// GetArticle handles GET /articles/{articleID}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		h.respondError(w, http.StatusBadRequest, "Article ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetArticleQuery{
		UserID:    userCtx.UserID,
		ArticleID: articleID,
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		if apperrors.IsNotFound(err) {
			h.respondError(w, http.StatusNotFound, "Article not found")
			return
		}
		if apperrors.IsForbidden(err) {
			h.respondError(w, http.StatusForbidden, "Access denied")
			return
		}
		h.logger.Error("Failed to get article",
			zap.String("articleID", articleID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to get article")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// DeleteArticle handles DELETE /maps/{mapID}/articles/{articleID}
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	articleID := chi.URLParam(r, "articleID")
	if mapID == "" || articleID == "" {
		h.respondError(w, http.StatusBadRequest, "Map ID and article ID are required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.DeleteArticleCommand{
		UserID:        userCtx.UserID,
		LearningMapID: mapID,
		ArticleID:     articleID,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		switch {
		case apperrors.IsNotFound(err):
			h.respondError(w, http.StatusNotFound, "Article not found")
		case apperrors.IsForbidden(err):
			h.respondError(w, http.StatusForbidden, "Access denied")
		case apperrors.IsValidation(err):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Failed to delete article",
				zap.String("mapID", mapID),
				zap.String("articleID", articleID),
				zap.Error(err),
			)
			h.respondError(w, http.StatusInternalServerError, "Failed to delete article")
		}
		return
	}

	// Cleanup is best effort; deletion already succeeded.
	cleanup := &commands.CleanupMapResourcesCommand{
		LearningMapID: mapID,
		ArticleID:     articleID,
		UserID:        userCtx.UserID,
	}
	if err := h.commandBus.Send(r.Context(), cleanup); err != nil {
		h.logger.Warn("Failed to clean up article resources",
			zap.String("mapID", mapID),
			zap.String("articleID", articleID),
			zap.Error(err),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeriveInsights handles POST /articles/{articleID}/insights
func (h *ArticleHandler) DeriveInsights(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "articleID")
	if articleID == "" {
		h.respondError(w, http.StatusBadRequest, "Article ID is required")
		return
	}

	if _, err := auth.GetUserFromContext(r.Context()); err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := commands.DeriveInsightsCommand{ArticleID: articleID}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		switch {
		case apperrors.IsNotFound(err):
			h.respondError(w, http.StatusNotFound, "Article not found")
		case apperrors.IsConflict(err):
			h.respondError(w, http.StatusConflict, "Article content is not ready yet")
		default:
			h.logger.Error("Failed to derive insights",
				zap.String("articleID", articleID),
				zap.Error(err),
			)
			h.respondError(w, http.StatusInternalServerError, "Failed to derive insights")
		}
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"articleId": articleID,
		"status":    "insights_requested",
	})
}

// Helper methods

func (h *ArticleHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ArticleHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
