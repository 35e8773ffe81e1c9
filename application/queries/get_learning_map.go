package queries

import (
	"context"
	"errors"
	"time"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	pkgerrors "learnmap-backend/pkg/errors"
)

// GetLearningMapQuery represents a query to retrieve a learning map
type GetLearningMapQuery struct {
	LearningMapID string `json:"learning_map_id"`
	UserID        string `json:"user_id"`
}

// Validate validates the query
func (q GetLearningMapQuery) Validate() error {
	if q.LearningMapID == "" {
		return errors.New("learning map ID is required")
	}
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// GetLearningMapResult represents the query result
type GetLearningMapResult struct {
	ID        string        `json:"id"`
	SubjectID string        `json:"subject_id"`
	Name      string        `json:"name"`
	Articles  []ArticleDTO  `json:"articles"`
	Questions []QuestionDTO `json:"questions"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// ArticleDTO is a data transfer object for articles
type ArticleDTO struct {
	ID        string            `json:"id"`
	IsRoot    bool              `json:"is_root"`
	Status    string            `json:"status"`
	Content   string            `json:"content"`
	Summary   string            `json:"summary,omitempty"`
	Takeaways []string          `json:"takeaways,omitempty"`
	Tooltips  map[string]string `json:"tooltips,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// QuestionDTO is a data transfer object for questions
type QuestionDTO struct {
	ID              string `json:"id"`
	ParentArticleID string `json:"parent_article_id"`
	ChildArticleID  string `json:"child_article_id"`
	Text            string `json:"text"`
	IsImplicit      bool   `json:"is_implicit"`
	CreatedAt       string `json:"created_at"`
}

// GetLearningMapHandler handles the GetLearningMapQuery
type GetLearningMapHandler struct {
	mapRepo ports.LearningMapRepository
	cache   ports.Cache
}

// NewGetLearningMapHandler creates a new handler instance
func NewGetLearningMapHandler(mapRepo ports.LearningMapRepository, cache ports.Cache) *GetLearningMapHandler {
	return &GetLearningMapHandler{
		mapRepo: mapRepo,
		cache:   cache,
	}
}

// Handle executes the get learning map query
func (h *GetLearningMapHandler) Handle(ctx context.Context, query GetLearningMapQuery) (*GetLearningMapResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	cacheKey := "map:" + query.LearningMapID
	if cached, found := h.cache.Get(ctx, cacheKey); found {
		if result, ok := cached.(*GetLearningMapResult); ok {
			return result, nil
		}
	}

	lm, err := h.mapRepo.GetByID(ctx, aggregates.LearningMapID(query.LearningMapID))
	if err != nil {
		return nil, err
	}

	if lm.UserID() != query.UserID {
		return nil, pkgerrors.NewForbiddenError("learning map belongs to another user")
	}

	result := &GetLearningMapResult{
		ID:        lm.ID().String(),
		SubjectID: lm.SubjectID(),
		Name:      lm.Name(),
		Articles:  make([]ArticleDTO, 0, len(lm.Articles())),
		Questions: make([]QuestionDTO, 0, len(lm.Questions())),
		CreatedAt: lm.CreatedAt().Format(time.RFC3339),
		UpdatedAt: lm.UpdatedAt().Format(time.RFC3339),
	}

	for _, article := range lm.Articles() {
		content := article.Content()
		result.Articles = append(result.Articles, ArticleDTO{
			ID:        article.ID().String(),
			IsRoot:    article.IsRoot(),
			Status:    string(article.Status()),
			Content:   content.Body(),
			Summary:   content.Summary(),
			Takeaways: content.Takeaways(),
			Tooltips:  content.Tooltips(),
			CreatedAt: article.CreatedAt().Format(time.RFC3339),
			UpdatedAt: article.UpdatedAt().Format(time.RFC3339),
		})
	}

	for _, question := range lm.Questions() {
		result.Questions = append(result.Questions, QuestionDTO{
			ID:              question.ID().String(),
			ParentArticleID: question.ParentArticleID().String(),
			ChildArticleID:  question.ChildArticleID().String(),
			Text:            question.Text(),
			IsImplicit:      question.IsImplicit(),
			CreatedAt:       question.CreatedAt().Format(time.RFC3339),
		})
	}

	// Cache the result for 5 minutes
	h.cache.Set(ctx, cacheKey, result, 300)

	return result, nil
}
