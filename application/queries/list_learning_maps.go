package queries

import (
	"context"
	"errors"
	"time"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
)

// ListLearningMapsQuery represents a query to list learning maps
type ListLearningMapsQuery struct {
	UserID    string
	SubjectID string // Optional, filters to one subject when set
}

// Validate validates the query
func (q ListLearningMapsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// ListLearningMapsResult represents the result of listing learning maps
type ListLearningMapsResult struct {
	Maps       []LearningMapSummary `json:"maps"`
	TotalCount int                  `json:"totalCount"`
}

// LearningMapSummary represents a summary of a learning map
type LearningMapSummary struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subjectId"`
	Name          string `json:"name"`
	ArticleCount  int    `json:"articleCount"`
	QuestionCount int    `json:"questionCount"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// ListLearningMapsHandler handles the ListLearningMapsQuery
type ListLearningMapsHandler struct {
	mapRepo ports.LearningMapRepository
}

// NewListLearningMapsHandler creates a new handler instance
func NewListLearningMapsHandler(mapRepo ports.LearningMapRepository) *ListLearningMapsHandler {
	return &ListLearningMapsHandler{mapRepo: mapRepo}
}

// Handle executes the list learning maps query
func (h *ListLearningMapsHandler) Handle(ctx context.Context, query ListLearningMapsQuery) (*ListLearningMapsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var maps []*aggregates.LearningMap
	var err error
	if query.SubjectID != "" {
		maps, err = h.mapRepo.ListBySubject(ctx, query.SubjectID)
	} else {
		maps, err = h.mapRepo.ListByUser(ctx, query.UserID)
	}
	if err != nil {
		return nil, err
	}

	result := &ListLearningMapsResult{
		Maps: make([]LearningMapSummary, 0, len(maps)),
	}
	for _, lm := range maps {
		if lm.UserID() != query.UserID {
			continue
		}
		result.Maps = append(result.Maps, LearningMapSummary{
			ID:            lm.ID().String(),
			SubjectID:     lm.SubjectID(),
			Name:          lm.Name(),
			ArticleCount:  len(lm.Articles()),
			QuestionCount: len(lm.Questions()),
			CreatedAt:     lm.CreatedAt().Format(time.RFC3339),
			UpdatedAt:     lm.UpdatedAt().Format(time.RFC3339),
		})
	}
	result.TotalCount = len(result.Maps)

	return result, nil
}
