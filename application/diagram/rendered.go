package diagram

import (
	"fmt"

	"learnmap-backend/domain/core/valueobjects"
)

// NodeKind distinguishes the two kinds of rendered nodes.
type NodeKind string

const (
	KindArticle  NodeKind = "article"
	KindQuestion NodeKind = "question"
)

// Phase is the lifecycle stage of a rendered node. Transitions only move
// forward: a node is staged hidden off-screen, becomes positioned once a
// layout pass assigns real coordinates, and becomes visible when revealed.
// A content update never moves a node backward.
type Phase int

const (
	PhaseStaged Phase = iota
	PhasePositioned
	PhaseVisible
)

func (p Phase) String() string {
	switch p {
	case PhaseStaged:
		return "staged"
	case PhasePositioned:
		return "positioned"
	case PhaseVisible:
		return "visible"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// RenderedNode is one node as held by the rendering surface. Instances are
// owned by DiagramMutator and must only be touched through its methods.
type RenderedNode struct {
	id             string
	kind           NodeKind
	data           string
	position       valueobjects.Position
	finalPosition  *valueobjects.Position
	measuredHeight float64
	phase          Phase
}

func (n *RenderedNode) ID() string                            { return n.id }
func (n *RenderedNode) Kind() NodeKind                        { return n.kind }
func (n *RenderedNode) Data() string                          { return n.data }
func (n *RenderedNode) Position() valueobjects.Position       { return n.position }
func (n *RenderedNode) FinalPosition() *valueobjects.Position { return n.finalPosition }
func (n *RenderedNode) MeasuredHeight() float64               { return n.measuredHeight }
func (n *RenderedNode) Phase() Phase                          { return n.phase }
func (n *RenderedNode) Visible() bool                         { return n.phase == PhaseVisible }

// advance moves the node forward through its lifecycle. Backward moves are
// ignored, which keeps redundant layout or reveal passes harmless.
func (n *RenderedNode) advance(to Phase) {
	if to > n.phase {
		n.phase = to
	}
}

// RenderedEdge is one directed link between two rendered nodes.
type RenderedEdge struct {
	id       string
	sourceID string
	targetID string
}

func (e *RenderedEdge) ID() string       { return e.id }
func (e *RenderedEdge) SourceID() string { return e.sourceID }
func (e *RenderedEdge) TargetID() string { return e.targetID }

func edgeID(sourceID, targetID string) string {
	return sourceID + ":" + targetID
}

// NodeView is the read-only projection of a rendered node handed to the
// rendering surface and to diffing callers. TargetX and TargetY carry the
// staging hint near the node's source while the node still waits for a real
// layout position; the surface animates toward them. They clear once a
// layout pass lands.
type NodeView struct {
	ID      string   `json:"id"`
	Kind    NodeKind `json:"kind"`
	Data    string   `json:"data"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	TargetX *float64 `json:"target_x,omitempty"`
	TargetY *float64 `json:"target_y,omitempty"`
	Visible bool     `json:"visible"`
}

// EdgeView is the read-only projection of a rendered edge.
type EdgeView struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// StageRequest describes one canonical node to be staged into the rendered
// collection. SourceID names the node the new node hangs off; when empty the
// mutator falls back to the most recently added node.
type StageRequest struct {
	ID       string
	Kind     NodeKind
	Data     string
	SourceID string
}
