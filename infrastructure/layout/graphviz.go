// Package layout computes diagram positions with Graphviz. It implements
// the diagram.LayoutEngine port by building a DOT graph, running the dot
// layout, and reading the positions back out of the attributed output.
package layout

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
	pkgerrors "learnmap-backend/pkg/errors"
)

// pointsPerPixel converts the CSS pixel sizes the client measures into the
// 72-dpi points Graphviz works in.
const pointsPerPixel = 0.75

// GraphvizEngine runs the dot layout over a node/edge set.
type GraphvizEngine struct {
	logger *zap.Logger
}

// NewGraphvizEngine creates a Graphviz-backed layout engine.
func NewGraphvizEngine(logger *zap.Logger) *GraphvizEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphvizEngine{logger: logger}
}

// Compute lays out the given nodes and edges and returns their positions.
// Orphan edges (either endpoint missing from the node set) are rejected
// before Graphviz ever runs; Graphviz failures are classified as layout
// errors so callers can fall back to their pre-layout state.
func (e *GraphvizEngine) Compute(ctx context.Context, nodes []diagram.LayoutNode, edges []diagram.LayoutEdge, direction diagram.Direction) (*diagram.LayoutOutput, error) {
	if len(nodes) == 0 {
		return &diagram.LayoutOutput{}, nil
	}

	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}
	for _, edge := range edges {
		if !known[edge.SourceID] || !known[edge.TargetID] {
			return nil, pkgerrors.NewLayoutError(
				fmt.Sprintf("orphan edge %s -> %s", edge.SourceID, edge.TargetID), nil)
		}
	}

	dot := buildDOT(nodes, edges, direction)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, pkgerrors.NewLayoutError("init graphviz", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, pkgerrors.NewLayoutError("parse DOT", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.XDOT, &buf); err != nil {
		return nil, pkgerrors.NewLayoutError("dot layout", err)
	}

	positions, maxY := parsePositions(buf.String())
	out := &diagram.LayoutOutput{}
	for _, n := range nodes {
		p, ok := positions[n.ID]
		if !ok {
			return nil, pkgerrors.NewLayoutError(
				fmt.Sprintf("node %s missing from layout output", n.ID), nil)
		}
		// Graphviz's y axis points up; screens point down.
		out.Nodes = append(out.Nodes, diagram.PositionedNode{
			ID: n.ID,
			X:  p.x / pointsPerPixel,
			Y:  (maxY - p.y) / pointsPerPixel,
		})
	}

	e.logger.Debug("graphviz layout complete",
		zap.Int("nodes", len(out.Nodes)),
		zap.Int("edges", len(edges)),
	)
	return out, nil
}

func buildDOT(nodes []diagram.LayoutNode, edges []diagram.LayoutEdge, direction diagram.Direction) string {
	rankdir := "TB"
	if direction == diagram.DirectionLeftToRight {
		rankdir = "LR"
	}

	var buf strings.Builder
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  node [shape=box, fixedsize=true];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		width := n.Width
		if width <= 0 {
			width = 320
		}
		height := n.Height
		if height <= 0 {
			height = 150
		}
		fmt.Fprintf(&buf, "  %q [width=%.3f, height=%.3f];\n",
			n.ID, width*pointsPerPixel/72, height*pointsPerPixel/72)
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.SourceID, e.TargetID)
	}

	buf.WriteString("}\n")
	return buf.String()
}

type point struct {
	x, y float64
}

var nodePosRe = regexp.MustCompile(`(?m)^\s*"?([^"\s\[]+)"?\s*\[[^\]]*?\bpos="([0-9.-]+),([0-9.-]+)"`)

// parsePositions pulls node center positions out of attributed DOT output.
// Edge statements contain "->" and are skipped; their pos attributes hold
// spline control points, not centers.
func parsePositions(attributed string) (map[string]point, float64) {
	positions := make(map[string]point)
	maxY := 0.0
	for _, line := range strings.Split(attributed, "\n") {
		if strings.Contains(line, "->") {
			continue
		}
		m := nodePosRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		x, errX := strconv.ParseFloat(m[2], 64)
		y, errY := strconv.ParseFloat(m[3], 64)
		if errX != nil || errY != nil {
			continue
		}
		positions[m[1]] = point{x: x, y: y}
		if y > maxY {
			maxY = y
		}
	}
	return positions, maxY
}
