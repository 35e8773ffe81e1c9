package diagram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"
)

// stackEngine is a synchronous engine that stacks nodes vertically. failFor
// makes the first n calls fail.
type stackEngine struct {
	mu      sync.Mutex
	calls   int
	failFor int
}

func (e *stackEngine) Compute(ctx context.Context, nodes []LayoutNode, edges []LayoutEdge, direction Direction) (*LayoutOutput, error) {
	e.mu.Lock()
	e.calls++
	fail := e.calls <= e.failFor
	e.mu.Unlock()
	if fail {
		return nil, errors.New("layout backend unavailable")
	}
	out := &LayoutOutput{}
	for i, n := range nodes {
		out.Nodes = append(out.Nodes, PositionedNode{ID: n.ID, X: 100, Y: 100 + float64(i)*210})
	}
	return out, nil
}

func (e *stackEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type reconcilerFixture struct {
	reconciler *GraphReconciler
	mutator    *DiagramMutator
	surface    *fakeSurface
	engine     *stackEngine
}

func newReconcilerFixture(failFor int) *reconcilerFixture {
	surface := &fakeSurface{}
	mutator := NewDiagramMutator(surface, config.DefaultDomainConfig(), zap.NewNop())
	engine := &stackEngine{failFor: failFor}
	scheduler := NewLayoutScheduler(engine, zap.NewNop())
	return &reconcilerFixture{
		reconciler: NewGraphReconciler(mutator, scheduler, zap.NewNop()),
		mutator:    mutator,
		surface:    surface,
		engine:     engine,
	}
}

func newMapWithRoot(t *testing.T) (*aggregates.LearningMap, *entities.Article) {
	t.Helper()
	lm, err := aggregates.NewLearningMap("subj1", "user123", "Test Map")
	require.NoError(t, err)
	root, err := entities.NewArticle("user123", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))
	return lm, root
}

func askQuestion(t *testing.T, lm *aggregates.LearningMap, parent *entities.Article, text string) (*entities.Article, *entities.Question) {
	t.Helper()
	child, err := entities.NewArticle("user123", lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), parent.ID(), child.ID(), text, false)
	require.NoError(t, err)
	require.NoError(t, lm.AddArticleWithQuestion(child, q))
	return child, q
}

func waitForReveal(t *testing.T, m *DiagramMutator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(m.PendingReveal()) == 0
	}, time.Second, 5*time.Millisecond, "staged nodes were never revealed")
}

func TestReconcile_RootOnlyMapRevealsAndCentersRoot(t *testing.T) {
	f := newReconcilerFixture(0)
	lm, root := newMapWithRoot(t)

	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)

	views, _ := f.mutator.Snapshot()
	require.Len(t, views, 1)
	assert.True(t, views[0].Visible)
	assert.Equal(t, []string{root.ID().String()}, f.surface.centeredOn())
}

func TestReconcile_NewQuestionPairStagedRevealedCentered(t *testing.T) {
	f := newReconcilerFixture(0)
	lm, root := newMapWithRoot(t)
	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)

	child, q := askQuestion(t, lm, root, "What follows from this?")
	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)

	views, edges := f.mutator.Snapshot()
	require.Len(t, views, 3)
	for _, v := range views {
		assert.True(t, v.Visible)
	}
	require.Len(t, edges, 2)
	assert.Equal(t, root.ID().String(), edges[0].SourceID)
	assert.Equal(t, q.ID().String(), edges[0].TargetID)
	assert.Equal(t, q.ID().String(), edges[1].SourceID)
	assert.Equal(t, child.ID().String(), edges[1].TargetID)

	centered := f.surface.centeredOn()
	require.Len(t, centered, 2)
	assert.Equal(t, child.ID().String(), centered[1])
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newReconcilerFixture(0)
	lm, root := newMapWithRoot(t)
	askQuestion(t, lm, root, "Why?")

	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)

	renders := f.surface.renderCount()
	layouts := f.engine.callCount()

	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))

	assert.Empty(t, f.mutator.PendingReveal(), "second pass must stage nothing")
	assert.Equal(t, renders, f.surface.renderCount(), "no-op must not repaint")
	assert.Equal(t, layouts, f.engine.callCount(), "no-op must not rerun layout")
}

func TestReconcile_ContentChangeReplacedWithoutLayout(t *testing.T) {
	f := newReconcilerFixture(0)
	lm, root := newMapWithRoot(t)
	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)
	layouts := f.engine.callCount()

	views, _ := f.mutator.Snapshot()
	wasX, wasY := views[0].X, views[0].Y

	content, err := valueobjects.NewArticleContent("Freshly generated body text.")
	require.NoError(t, err)
	require.NoError(t, root.FillContent(content))
	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))

	views, _ = f.mutator.Snapshot()
	require.Len(t, views, 1)
	assert.Contains(t, views[0].Data, "Freshly generated body text.")
	assert.True(t, views[0].Visible)
	assert.Equal(t, wasX, views[0].X)
	assert.Equal(t, wasY, views[0].Y)
	assert.Equal(t, layouts, f.engine.callCount(), "content change must not rerun layout")
}

func TestReconcile_CyclicMapFailsWithoutPartialStaging(t *testing.T) {
	f := newReconcilerFixture(0)

	lm, err := aggregates.ReconstructLearningMap("map1", "subj1", "user123", "Broken", time.Now(), time.Now())
	require.NoError(t, err)
	a, err := entities.NewArticle("user123", "map1", true)
	require.NoError(t, err)
	b, err := entities.NewArticle("user123", "map1", false)
	require.NoError(t, err)
	qAB, err := entities.NewQuestion("map1", a.ID(), b.ID(), "A to B?", false)
	require.NoError(t, err)
	qBA, err := entities.NewQuestion("map1", b.ID(), a.ID(), "B to A?", false)
	require.NoError(t, err)
	lm.AttachArticle(a)
	lm.AttachArticle(b)
	lm.AttachQuestion(qAB)
	lm.AttachQuestion(qBA)

	err = f.reconciler.Reconcile(context.Background(), lm)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsStructural(err))
	views, _ := f.mutator.Snapshot()
	assert.Empty(t, views, "structural failure must not stage anything")
}

func TestComputeDesiredShape_SkipsQuestionWithMissingParent(t *testing.T) {
	lm, err := aggregates.ReconstructLearningMap("map1", "subj1", "user123", "Partial", time.Now(), time.Now())
	require.NoError(t, err)
	root, err := entities.NewArticle("user123", "map1", true)
	require.NoError(t, err)
	child, err := entities.NewArticle("user123", "map1", false)
	require.NoError(t, err)
	ghost, err := entities.NewArticle("user123", "map1", false)
	require.NoError(t, err)
	q, err := entities.NewQuestion("map1", ghost.ID(), child.ID(), "Whose child is this?", false)
	require.NoError(t, err)
	lm.AttachArticle(root)
	lm.AttachArticle(child)
	lm.AttachQuestion(q)

	shape, err := ComputeDesiredShape(lm)
	require.NoError(t, err)

	inShape := make(map[string]bool, len(shape.Nodes))
	for _, n := range shape.Nodes {
		inShape[n.ID] = true
	}
	assert.False(t, inShape[q.ID().String()], "question without a parent must not be emitted")
	assert.True(t, inShape[child.ID().String()], "the child article itself must survive")
	for _, e := range shape.Edges {
		assert.True(t, inShape[e.SourceID], "edge source %s missing from node set", e.SourceID)
		assert.True(t, inShape[e.TargetID], "edge target %s missing from node set", e.TargetID)
	}
}

func TestReconcile_FailedLayoutKeepsStagedNodesForRetry(t *testing.T) {
	f := newReconcilerFixture(1)
	lm, _ := newMapWithRoot(t)

	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))

	require.Eventually(t, func() bool {
		return f.engine.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, f.mutator.PendingReveal(), 1, "failed layout must keep the node staged")
	views, _ := f.mutator.Snapshot()
	assert.False(t, views[0].Visible)

	// A later invocation, even with no canonical change, retries the layout.
	require.NoError(t, f.reconciler.Reconcile(context.Background(), lm))
	waitForReveal(t, f.mutator)

	views, _ = f.mutator.Snapshot()
	assert.True(t, views[0].Visible)
}
