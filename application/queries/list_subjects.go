package queries

import (
	"context"
	"errors"
	"time"

	"learnmap-backend/application/ports"
)

// ListSubjectsQuery represents a query to list a user's subjects
type ListSubjectsQuery struct {
	UserID string
}

// Validate validates the query
func (q ListSubjectsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// ListSubjectsResult represents the result of listing subjects
type ListSubjectsResult struct {
	Subjects []SubjectSummary `json:"subjects"`
}

// SubjectSummary represents a summary of a subject
type SubjectSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// ListSubjectsHandler handles the ListSubjectsQuery
type ListSubjectsHandler struct {
	subjectRepo ports.SubjectRepository
}

// NewListSubjectsHandler creates a new handler instance
func NewListSubjectsHandler(subjectRepo ports.SubjectRepository) *ListSubjectsHandler {
	return &ListSubjectsHandler{subjectRepo: subjectRepo}
}

// Handle executes the list subjects query
func (h *ListSubjectsHandler) Handle(ctx context.Context, query ListSubjectsQuery) (*ListSubjectsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	subjects, err := h.subjectRepo.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	result := &ListSubjectsResult{
		Subjects: make([]SubjectSummary, 0, len(subjects)),
	}
	for _, subject := range subjects {
		result.Subjects = append(result.Subjects, SubjectSummary{
			ID:          subject.ID().String(),
			Title:       subject.Title(),
			Description: subject.Description(),
			CreatedAt:   subject.CreatedAt().Format(time.RFC3339),
			UpdatedAt:   subject.UpdatedAt().Format(time.RFC3339),
		})
	}

	return result, nil
}
