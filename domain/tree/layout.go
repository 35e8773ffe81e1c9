package tree

import (
	"learnmap-backend/domain/config"
)

// LayoutConfig carries the spacing constants used when placing nodes.
type LayoutConfig struct {
	DefaultNodeHeight float64
	HorizontalSpacing float64
	VerticalSpacing   float64
	OriginX           float64
	OriginY           float64
}

// LayoutConfigFrom extracts the layout constants from the domain config.
func LayoutConfigFrom(cfg *config.DomainConfig) LayoutConfig {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return LayoutConfig{
		DefaultNodeHeight: cfg.DefaultNodeHeight,
		HorizontalSpacing: cfg.HorizontalSpacing,
		VerticalSpacing:   cfg.VerticalSpacing,
		OriginX:           cfg.OriginX,
		OriginY:           cfg.OriginY,
	}
}

// PlacedNode is one article node with its computed coordinates.
type PlacedNode struct {
	ID     string
	X      float64
	Y      float64
	Height float64
}

// PlacedEdge is one parent→child link, labeled with the question that
// created it.
type PlacedEdge struct {
	SourceID   string
	TargetID   string
	QuestionID string
}

// LayoutResult is the flattened output of a layout pass.
type LayoutResult struct {
	Nodes []PlacedNode
	Edges []PlacedEdge
}

// Layout assigns coordinates to a single rooted tree. A nil root yields an
// empty result.
func Layout(root *Node, heights map[string]float64, cfg LayoutConfig) *LayoutResult {
	if root == nil {
		return &LayoutResult{}
	}
	return LayoutForest([]*Node{root}, heights, cfg)
}

// LayoutForest lays out multiple independent trees, stacking them vertically.
// Each tree advances the starting Y by its own subtree height plus the
// vertical spacing.
//
// Placement is deterministic: leaves take sequential X slots left to right in
// visitation order, internal nodes sit at the midpoint of their leftmost and
// rightmost child, and a child's Y is its parent's Y plus the parent's
// measured height plus the vertical spacing. A missing height measurement
// falls back to the default constant and never fails the pass.
func LayoutForest(roots []*Node, heights map[string]float64, cfg LayoutConfig) *LayoutResult {
	result := &LayoutResult{}
	p := &placer{heights: heights, cfg: cfg, result: result}

	y := cfg.OriginY
	for _, root := range roots {
		if root == nil {
			continue
		}
		p.place(root, y)
		y += p.subtreeHeight(root) + cfg.VerticalSpacing
	}
	return result
}

type placer struct {
	heights map[string]float64
	cfg     LayoutConfig
	result  *LayoutResult

	nextSlot int
}

// place positions the subtree rooted at n with the given top Y and returns
// the node's X coordinate. X is resolved post-order so a parent can center
// itself over its children; Y accumulates pre-order down the tree.
func (p *placer) place(n *Node, y float64) float64 {
	var x float64
	if n.IsLeaf() {
		x = p.cfg.OriginX + float64(p.nextSlot)*p.cfg.HorizontalSpacing
		p.nextSlot++
	} else {
		childY := y + p.height(n) + p.cfg.VerticalSpacing
		minX := 0.0
		maxX := 0.0
		for i, child := range n.Children {
			cx := p.place(child, childY)
			if i == 0 {
				minX, maxX = cx, cx
				continue
			}
			if cx < minX {
				minX = cx
			}
			if cx > maxX {
				maxX = cx
			}
		}
		x = (minX + maxX) / 2
	}

	p.result.Nodes = append(p.result.Nodes, PlacedNode{
		ID:     n.ID(),
		X:      x,
		Y:      y,
		Height: p.height(n),
	})
	for _, child := range n.Children {
		p.result.Edges = append(p.result.Edges, PlacedEdge{
			SourceID:   n.ID(),
			TargetID:   child.ID(),
			QuestionID: child.Question.ID().String(),
		})
	}
	return x
}

// height resolves a node's measured height, falling back to the default.
func (p *placer) height(n *Node) float64 {
	if h, ok := p.heights[n.ID()]; ok && h > 0 {
		return h
	}
	return p.cfg.DefaultNodeHeight
}

// subtreeHeight is the vertical extent of the subtree rooted at n: the
// node's own height plus the tallest child chain below it.
func (p *placer) subtreeHeight(n *Node) float64 {
	h := p.height(n)
	if n.IsLeaf() {
		return h
	}
	deepest := 0.0
	for _, child := range n.Children {
		if ch := p.subtreeHeight(child); ch > deepest {
			deepest = ch
		}
	}
	return h + p.cfg.VerticalSpacing + deepest
}
