package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
	pkgerrors "learnmap-backend/pkg/errors"
)

func TestCompute_RejectsOrphanEdge(t *testing.T) {
	e := NewGraphvizEngine(zap.NewNop())

	_, err := e.Compute(context.Background(),
		[]diagram.LayoutNode{{ID: "a"}},
		[]diagram.LayoutEdge{{SourceID: "a", TargetID: "ghost"}},
		diagram.DirectionTopToBottom)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsLayout(err))
}

func TestCompute_EmptyInput(t *testing.T) {
	e := NewGraphvizEngine(zap.NewNop())

	out, err := e.Compute(context.Background(), nil, nil, diagram.DirectionTopToBottom)

	require.NoError(t, err)
	assert.Empty(t, out.Nodes)
}

func TestBuildDOT(t *testing.T) {
	dot := buildDOT(
		[]diagram.LayoutNode{{ID: "a1", Width: 320, Height: 150}, {ID: "q1"}},
		[]diagram.LayoutEdge{{SourceID: "a1", TargetID: "q1"}},
		diagram.DirectionLeftToRight)

	assert.Contains(t, dot, "rankdir=LR;")
	assert.Contains(t, dot, `"a1" [width=`)
	assert.Contains(t, dot, `"a1" -> "q1";`)
}

func TestParsePositions(t *testing.T) {
	attributed := `digraph G {
	graph [bb="0,0,200,300"];
	"a1" [height=1.5, pos="100,282", width=3.2];
	"q1" [height=1.5, pos="100,120", width=3.2];
	"a1" -> "q1" [pos="e,100,174 100,255 100,230 100,205 100,184"];
}`

	positions, maxY := parsePositions(attributed)

	require.Len(t, positions, 2)
	assert.Equal(t, 282.0, maxY)
	assert.Equal(t, point{x: 100, y: 282}, positions["a1"])
	assert.Equal(t, point{x: 100, y: 120}, positions["q1"])
}
