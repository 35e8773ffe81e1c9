package queries

import (
	"context"
	"errors"
	"time"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"
)

// GetArticleQuery represents a query to get a single article
type GetArticleQuery struct {
	UserID    string
	ArticleID string
}

// Validate validates the GetArticleQuery
func (q GetArticleQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.ArticleID == "" {
		return errors.New("article ID is required")
	}
	return nil
}

// GetArticleResult represents the result of getting an article
type GetArticleResult struct {
	ID            string            `json:"id"`
	LearningMapID string            `json:"learningMapId"`
	IsRoot        bool              `json:"isRoot"`
	Status        string            `json:"status"`
	Content       string            `json:"content"`
	Summary       string            `json:"summary,omitempty"`
	Takeaways     []string          `json:"takeaways,omitempty"`
	Tooltips      map[string]string `json:"tooltips,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     string            `json:"createdAt"`
	UpdatedAt     string            `json:"updatedAt"`
}

// GetArticleHandler handles the GetArticleQuery
type GetArticleHandler struct {
	articleRepo ports.ArticleRepository
}

// NewGetArticleHandler creates a new handler instance
func NewGetArticleHandler(articleRepo ports.ArticleRepository) *GetArticleHandler {
	return &GetArticleHandler{articleRepo: articleRepo}
}

// Handle executes the get article query
func (h *GetArticleHandler) Handle(ctx context.Context, query GetArticleQuery) (*GetArticleResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := valueobjects.NewArticleIDFromString(query.ArticleID)
	if err != nil {
		return nil, err
	}

	article, err := h.articleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if article.UserID() != query.UserID {
		return nil, pkgerrors.NewForbiddenError("article belongs to another user")
	}

	content := article.Content()
	return &GetArticleResult{
		ID:            article.ID().String(),
		LearningMapID: article.LearningMapID(),
		IsRoot:        article.IsRoot(),
		Status:        string(article.Status()),
		Content:       content.Body(),
		Summary:       content.Summary(),
		Takeaways:     content.Takeaways(),
		Tooltips:      content.Tooltips(),
		Version:       article.Version(),
		CreatedAt:     article.CreatedAt().Format(time.RFC3339),
		UpdatedAt:     article.UpdatedAt().Format(time.RFC3339),
	}, nil
}
