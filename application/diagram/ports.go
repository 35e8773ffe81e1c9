// Package diagram maintains the rendered node-link view of a learning map.
// It diffs the canonical map against what is currently on screen, stages new
// nodes invisibly, schedules asynchronous layout passes, and reveals nodes
// once their positions are known. All rendered state is owned by
// DiagramMutator; nothing else mutates it.
package diagram

import (
	"context"
)

// Direction controls the rank direction of an external layout pass.
type Direction string

const (
	DirectionTopToBottom Direction = "TB"
	DirectionLeftToRight Direction = "LR"
)

// LayoutNode is one node handed to the external layout engine.
type LayoutNode struct {
	ID     string
	Width  float64
	Height float64
}

// LayoutEdge is one directed link handed to the external layout engine.
type LayoutEdge struct {
	SourceID string
	TargetID string
}

// PositionedNode is one node with coordinates resolved by a layout pass.
type PositionedNode struct {
	ID string
	X  float64
	Y  float64
}

// LayoutOutput is the result of a completed layout computation.
type LayoutOutput struct {
	Nodes []PositionedNode
}

// LayoutEngine computes positions for a node/edge set. Implementations may
// take hundreds of milliseconds for graphs of dozens of nodes, so callers
// must treat Compute as a blocking call and run it off the hot path. A
// malformed input (orphan edges) or an internal library failure returns a
// layout-classified error.
type LayoutEngine interface {
	Compute(ctx context.Context, nodes []LayoutNode, edges []LayoutEdge, direction Direction) (*LayoutOutput, error)
}

// RenderSurface receives the effects this package produces: full snapshots
// of the rendered collection to paint, and camera-centering instructions.
// The surface calls back into DiagramMutator with measured node heights
// after it paints a node.
type RenderSurface interface {
	RenderDiagram(nodes []NodeView, edges []EdgeView)
	CenterOn(nodeID string)
}
