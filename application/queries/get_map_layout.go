package queries

import (
	"errors"
)

// GetMapLayoutQuery represents a query for the positioned layout of a
// learning map, used to render the diagram without a live layout pass.
type GetMapLayoutQuery struct {
	UserID        string `json:"user_id"`
	LearningMapID string `json:"learning_map_id"`
}

// Validate validates the query
func (q GetMapLayoutQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.LearningMapID == "" {
		return errors.New("learning map ID is required")
	}
	return nil
}

// GetMapLayoutResult represents the positioned layout of a learning map
type GetMapLayoutResult struct {
	Nodes        []LayoutNodeDTO `json:"nodes"`
	Edges        []LayoutEdgeDTO `json:"edges"`
	FromSnapshot bool            `json:"from_snapshot"`
	Stats        LayoutStats     `json:"stats"`
}

// LayoutStats contains layout statistics
type LayoutStats struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
	Depth     int `json:"depth"`
}

// LayoutNodeDTO is one positioned node
type LayoutNodeDTO struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
}

// LayoutEdgeDTO is one edge between positioned nodes
type LayoutEdgeDTO struct {
	SourceID   string `json:"source"`
	TargetID   string `json:"target"`
	QuestionID string `json:"question_id,omitempty"`
}
