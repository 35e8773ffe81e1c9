package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/application/queries"
	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/tree"
	pkgerrors "learnmap-backend/pkg/errors"
)

// GetMapLayoutHandler answers layout queries for a learning map. It serves
// the persisted snapshot when one covers the current map, and otherwise runs
// the static tree layout with whatever node heights the snapshot recorded.
type GetMapLayoutHandler struct {
	mapRepo   ports.LearningMapRepository
	snapshots ports.LayoutSnapshotStore
	layoutCfg tree.LayoutConfig
	logger    *zap.Logger
}

// NewGetMapLayoutHandler creates a new map layout handler
func NewGetMapLayoutHandler(
	mapRepo ports.LearningMapRepository,
	snapshots ports.LayoutSnapshotStore,
	domainCfg *config.DomainConfig,
	logger *zap.Logger,
) *GetMapLayoutHandler {
	return &GetMapLayoutHandler{
		mapRepo:   mapRepo,
		snapshots: snapshots,
		layoutCfg: tree.LayoutConfigFrom(domainCfg),
		logger:    logger,
	}
}

// Handle executes the map layout query
func (h *GetMapLayoutHandler) Handle(ctx context.Context, query queries.GetMapLayoutQuery) (*queries.GetMapLayoutResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	lm, err := h.mapRepo.GetByID(ctx, aggregates.LearningMapID(query.LearningMapID))
	if err != nil {
		return nil, fmt.Errorf("failed to get learning map: %w", err)
	}

	if lm.UserID() != query.UserID {
		return nil, pkgerrors.NewForbiddenError("learning map belongs to another user")
	}

	articles := lm.Articles()
	if len(articles) == 0 {
		return &queries.GetMapLayoutResult{
			Nodes: []queries.LayoutNodeDTO{},
			Edges: []queries.LayoutEdgeDTO{},
		}, nil
	}

	root := tree.Build(articles, lm.Questions())
	if root == nil {
		return nil, pkgerrors.NewStructuralError("learning map does not form a rooted tree")
	}

	snapshot, err := h.snapshots.Get(ctx, query.LearningMapID)
	if err != nil {
		h.logger.Warn("Failed to load layout snapshot, computing fresh layout",
			zap.String("learning_map_id", query.LearningMapID),
			zap.Error(err),
		)
		snapshot = nil
	}

	if snapshot != nil && snapshotCovers(snapshot, root) {
		return resultFromSnapshot(snapshot), nil
	}

	var heights map[string]float64
	if snapshot != nil {
		heights = snapshot.NodeHeights
	}

	placed := tree.Layout(root, heights, h.layoutCfg)

	result := &queries.GetMapLayoutResult{
		Nodes: make([]queries.LayoutNodeDTO, 0, len(placed.Nodes)),
		Edges: make([]queries.LayoutEdgeDTO, 0, len(placed.Edges)),
		Stats: queries.LayoutStats{
			NodeCount: len(placed.Nodes),
			EdgeCount: len(placed.Edges),
			Depth:     treeDepth(root),
		},
	}
	for _, node := range placed.Nodes {
		result.Nodes = append(result.Nodes, queries.LayoutNodeDTO{
			ID:     node.ID,
			X:      node.X,
			Y:      node.Y,
			Height: node.Height,
		})
	}
	for _, edge := range placed.Edges {
		result.Edges = append(result.Edges, queries.LayoutEdgeDTO{
			SourceID:   edge.SourceID,
			TargetID:   edge.TargetID,
			QuestionID: edge.QuestionID,
		})
	}

	h.logger.Debug("Map layout computed",
		zap.String("learning_map_id", query.LearningMapID),
		zap.Int("node_count", result.Stats.NodeCount),
		zap.Int("edge_count", result.Stats.EdgeCount),
	)

	return result, nil
}

// snapshotCovers reports whether a saved snapshot positions every article in
// the current tree. A stale snapshot from before the latest question is not
// served; the layout runs fresh instead.
func snapshotCovers(snapshot *ports.LayoutSnapshot, root *tree.Node) bool {
	positioned := make(map[string]bool, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		positioned[n.ID] = true
	}
	covered := true
	walk(root, func(n *tree.Node) {
		if !positioned[n.ID()] {
			covered = false
		}
	})
	return covered
}

func resultFromSnapshot(snapshot *ports.LayoutSnapshot) *queries.GetMapLayoutResult {
	result := &queries.GetMapLayoutResult{
		Nodes:        make([]queries.LayoutNodeDTO, 0, len(snapshot.Nodes)),
		Edges:        make([]queries.LayoutEdgeDTO, 0, len(snapshot.Edges)),
		FromSnapshot: true,
	}
	for _, n := range snapshot.Nodes {
		result.Nodes = append(result.Nodes, queries.LayoutNodeDTO{
			ID:     n.ID,
			X:      n.X,
			Y:      n.Y,
			Height: snapshot.NodeHeights[n.ID],
		})
	}
	for _, e := range snapshot.Edges {
		result.Edges = append(result.Edges, queries.LayoutEdgeDTO{
			SourceID: e.SourceID,
			TargetID: e.TargetID,
		})
	}
	result.Stats.NodeCount = len(result.Nodes)
	result.Stats.EdgeCount = len(result.Edges)
	return result
}

func walk(n *tree.Node, fn func(*tree.Node)) {
	fn(n)
	for _, child := range n.Children {
		walk(child, fn)
	}
}

func treeDepth(n *tree.Node) int {
	depth := 0
	for _, child := range n.Children {
		if d := treeDepth(child); d > depth {
			depth = d
		}
	}
	return depth + 1
}
