package diagram

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnmap-backend/domain/config"
)

// fakeSurface records every snapshot and centering instruction it receives.
type fakeSurface struct {
	mu       sync.Mutex
	renders  [][]NodeView
	edges    [][]EdgeView
	centered []string
}

func (f *fakeSurface) RenderDiagram(nodes []NodeView, edges []EdgeView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, nodes)
	f.edges = append(f.edges, edges)
}

func (f *fakeSurface) CenterOn(nodeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.centered = append(f.centered, nodeID)
}

func (f *fakeSurface) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.renders)
}

func (f *fakeSurface) lastRender() ([]NodeView, []EdgeView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.renders) == 0 {
		return nil, nil
	}
	return f.renders[len(f.renders)-1], f.edges[len(f.edges)-1]
}

func (f *fakeSurface) centeredOn() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.centered))
	copy(out, f.centered)
	return out
}

func newTestMutator() (*DiagramMutator, *fakeSurface) {
	surface := &fakeSurface{}
	return NewDiagramMutator(surface, config.DefaultDomainConfig(), zap.NewNop()), surface
}

func findView(t *testing.T, views []NodeView, id string) NodeView {
	t.Helper()
	for _, v := range views {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("node %s not in snapshot", id)
	return NodeView{}
}

func TestStageNode_HiddenAtOffscreenSentinel(t *testing.T) {
	m, surface := newTestMutator()

	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle, Data: `{"content":"x"}`})

	views, _ := surface.lastRender()
	v := findView(t, views, "a1")
	assert.False(t, v.Visible)
	assert.Equal(t, -9999.0, v.X)
	assert.Equal(t, -9999.0, v.Y)
	assert.Equal(t, []string{"a1"}, m.PendingReveal())
}

func TestStageNode_EdgeAndHintFromSource(t *testing.T) {
	m, surface := newTestMutator()

	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle})
	m.ApplyLayout([]PositionedNode{{ID: "a1", X: 100, Y: 100}})
	m.StageNode(StageRequest{ID: "q1", Kind: KindQuestion, SourceID: "a1"})

	_, edges := surface.lastRender()
	require.Len(t, edges, 1)
	assert.Equal(t, "a1", edges[0].SourceID)
	assert.Equal(t, "q1", edges[0].TargetID)

	views, _ := surface.lastRender()
	v := findView(t, views, "q1")
	require.NotNil(t, v.TargetX)
	require.NotNil(t, v.TargetY)
	assert.Equal(t, 300.0, *v.TargetX)
	assert.Equal(t, 200.0, *v.TargetY)

	// Once a layout pass positions the node, the hint is gone.
	m.ApplyLayout([]PositionedNode{{ID: "q1", X: 100, Y: 310}})
	views, _ = surface.lastRender()
	v = findView(t, views, "q1")
	assert.Nil(t, v.TargetX)
	assert.Nil(t, v.TargetY)
}

func TestStageNode_FallsBackToMostRecentlyAdded(t *testing.T) {
	m, surface := newTestMutator()

	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle})
	m.StageNode(StageRequest{ID: "q1", Kind: KindQuestion})

	_, edges := surface.lastRender()
	require.Len(t, edges, 1)
	assert.Equal(t, "a1", edges[0].SourceID)
}

func TestStageDependentChain_SingleAtomicUpdate(t *testing.T) {
	m, surface := newTestMutator()
	m.StageNode(StageRequest{ID: "root", Kind: KindArticle})
	before := surface.renderCount()

	// Supplied out of dependency order on purpose.
	m.StageDependentChain([]StageRequest{
		{ID: "a2", Kind: KindArticle, SourceID: "q1"},
		{ID: "q1", Kind: KindQuestion, SourceID: "root"},
		{ID: "q2", Kind: KindQuestion, SourceID: "a2"},
	})

	assert.Equal(t, before+1, surface.renderCount(), "batch must land as one update")
	views, edges := surface.lastRender()
	assert.Len(t, views, 4)
	assert.Len(t, edges, 3)

	// Staged order follows dependencies, so every edge found its source.
	sources := map[string]string{}
	for _, e := range edges {
		sources[e.TargetID] = e.SourceID
	}
	assert.Equal(t, "root", sources["q1"])
	assert.Equal(t, "q1", sources["a2"])
	assert.Equal(t, "a2", sources["q2"])
}

func TestReplaceNode_PreservesPositionAndVisibility(t *testing.T) {
	m, surface := newTestMutator()
	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle, Data: "old"})
	m.ApplyLayout([]PositionedNode{{ID: "a1", X: 250, Y: 300}})
	m.RevealPending()

	require.NoError(t, m.ReplaceNode("a1", "new"))

	views, _ := surface.lastRender()
	v := findView(t, views, "a1")
	assert.Equal(t, "new", v.Data)
	assert.True(t, v.Visible, "content update must not hide a visible node")
	assert.Equal(t, 250.0, v.X)
	assert.Equal(t, 300.0, v.Y)
}

func TestReplaceNode_UnknownNode(t *testing.T) {
	m, _ := newTestMutator()

	assert.Error(t, m.ReplaceNode("ghost", "data"))
}

func TestRevealPending_CentersOnNewestArticle(t *testing.T) {
	m, surface := newTestMutator()
	m.StageDependentChain([]StageRequest{
		{ID: "root", Kind: KindArticle},
		{ID: "q1", Kind: KindQuestion, SourceID: "root"},
		{ID: "a2", Kind: KindArticle, SourceID: "q1"},
	})
	m.ApplyLayout([]PositionedNode{
		{ID: "root", X: 100, Y: 100},
		{ID: "q1", X: 100, Y: 310},
		{ID: "a2", X: 100, Y: 520},
	})

	m.RevealPending()

	views, _ := surface.lastRender()
	for _, v := range views {
		assert.True(t, v.Visible)
	}
	assert.Empty(t, m.PendingReveal())
	assert.Equal(t, []string{"a2"}, surface.centeredOn())
}

func TestRevealPending_FirstLayoutCentersRoot(t *testing.T) {
	m, surface := newTestMutator()
	m.StageDependentChain([]StageRequest{
		{ID: "root", Kind: KindArticle},
		{ID: "q1", Kind: KindQuestion, SourceID: "root"},
	})
	m.ApplyLayout([]PositionedNode{{ID: "q1", X: 100, Y: 310}})

	// Only the question got a position; the root stays pending, so the
	// newest revealed node is not an article and centering falls back to
	// the root.
	m.RevealPending()

	assert.Equal(t, []string{"root"}, surface.centeredOn())
	assert.Equal(t, []string{"root"}, m.PendingReveal())
}

func TestRevealPending_UnpositionedNodesStayPending(t *testing.T) {
	m, _ := newTestMutator()
	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle})

	m.RevealPending()

	assert.Equal(t, []string{"a1"}, m.PendingReveal())
}

func TestRevealAll_ShowsEverything(t *testing.T) {
	m, surface := newTestMutator()
	m.StageDependentChain([]StageRequest{
		{ID: "root", Kind: KindArticle},
		{ID: "q1", Kind: KindQuestion, SourceID: "root"},
	})

	m.RevealAll()

	views, _ := surface.lastRender()
	for _, v := range views {
		assert.True(t, v.Visible)
	}
	assert.Empty(t, m.PendingReveal())
}

func TestSetMeasuredHeight(t *testing.T) {
	m, _ := newTestMutator()
	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle})

	m.SetMeasuredHeight("a1", 220)
	m.SetMeasuredHeight("a1", -5)
	m.SetMeasuredHeight("ghost", 100)

	assert.Equal(t, map[string]float64{"a1": 220}, m.Heights())
}

func TestStageNode_DuplicateIgnored(t *testing.T) {
	m, _ := newTestMutator()
	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle, Data: "first"})
	m.ApplyLayout([]PositionedNode{{ID: "a1", X: 1, Y: 2}})
	m.RevealPending()

	m.StageNode(StageRequest{ID: "a1", Kind: KindArticle, Data: "second"})

	views, _ := m.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, "first", views[0].Data)
	assert.True(t, views[0].Visible, "restaging must not move a node backward")
}
