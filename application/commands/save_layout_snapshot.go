package commands

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	pkgerrors "learnmap-backend/pkg/errors"
)

// SaveLayoutSnapshotCommand persists the client-measured layout of a map:
// final node positions, edges, and the heights the browser measured. The
// next layout pass starts from these instead of the default constants.
type SaveLayoutSnapshotCommand struct {
	UserID        string              `json:"user_id" validate:"required"`
	LearningMapID string              `json:"learning_map_id" validate:"required"`
	Nodes         []SnapshotNodeInput `json:"nodes" validate:"required,min=1"`
	Edges         []SnapshotEdgeInput `json:"edges"`
	NodeHeights   map[string]float64  `json:"node_heights"`
}

// SnapshotNodeInput is one positioned node as reported by the client
type SnapshotNodeInput struct {
	ID      string  `json:"id" validate:"required"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}

// SnapshotEdgeInput is one edge as reported by the client
type SnapshotEdgeInput struct {
	SourceID string `json:"source" validate:"required"`
	TargetID string `json:"target" validate:"required"`
}

// Validate validates the command
func (cmd SaveLayoutSnapshotCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.LearningMapID == "" {
		return errors.New("learning map ID is required")
	}
	if len(cmd.Nodes) == 0 {
		return errors.New("snapshot must contain at least one node")
	}
	return nil
}

// SaveLayoutSnapshotHandler handles the SaveLayoutSnapshotCommand
type SaveLayoutSnapshotHandler struct {
	mapRepo   ports.LearningMapRepository
	snapshots ports.LayoutSnapshotStore
	logger    *zap.Logger
}

// NewSaveLayoutSnapshotHandler creates a new handler instance
func NewSaveLayoutSnapshotHandler(
	mapRepo ports.LearningMapRepository,
	snapshots ports.LayoutSnapshotStore,
	logger *zap.Logger,
) *SaveLayoutSnapshotHandler {
	return &SaveLayoutSnapshotHandler{
		mapRepo:   mapRepo,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Handle executes the save layout snapshot command
func (h *SaveLayoutSnapshotHandler) Handle(ctx context.Context, cmd SaveLayoutSnapshotCommand) error {
	lm, err := h.mapRepo.GetByID(ctx, aggregates.LearningMapID(cmd.LearningMapID))
	if err != nil {
		return err
	}
	if lm.UserID() != cmd.UserID {
		return pkgerrors.NewForbiddenError("learning map belongs to another user")
	}

	// Reject snapshots that position articles the map does not contain.
	// A stale client must not overwrite the layout with phantom nodes.
	known := make(map[string]bool, len(lm.Articles()))
	for _, a := range lm.Articles() {
		known[a.ID().String()] = true
	}
	for _, n := range cmd.Nodes {
		if !known[n.ID] {
			return pkgerrors.NewValidationError("snapshot references unknown article: " + n.ID)
		}
	}

	snap := &ports.LayoutSnapshot{
		LearningMapID: cmd.LearningMapID,
		Nodes:         make([]ports.SnapshotNode, 0, len(cmd.Nodes)),
		Edges:         make([]ports.SnapshotEdge, 0, len(cmd.Edges)),
		NodeHeights:   cmd.NodeHeights,
		SavedAt:       time.Now(),
	}
	for _, n := range cmd.Nodes {
		snap.Nodes = append(snap.Nodes, ports.SnapshotNode{
			ID:      n.ID,
			Kind:    "article",
			X:       n.X,
			Y:       n.Y,
			Visible: n.Visible,
		})
	}
	for _, e := range cmd.Edges {
		snap.Edges = append(snap.Edges, ports.SnapshotEdge{
			SourceID: e.SourceID,
			TargetID: e.TargetID,
		})
	}

	if err := h.snapshots.Save(ctx, snap); err != nil {
		return err
	}

	h.logger.Debug("layout snapshot saved",
		zap.String("map_id", cmd.LearningMapID),
		zap.Int("node_count", len(snap.Nodes)),
	)
	return nil
}
