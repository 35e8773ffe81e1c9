package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"learnmap-backend/application/ports"
	"learnmap-backend/application/queries"
	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/infrastructure/persistence/memory"
	pkgerrors "learnmap-backend/pkg/errors"
)

func newLayoutHandler(t *testing.T, store *memory.Store) *GetMapLayoutHandler {
	t.Helper()
	return NewGetMapLayoutHandler(
		store.LearningMaps(),
		store.LayoutSnapshots(),
		config.DefaultDomainConfig(),
		zaptest.NewLogger(t),
	)
}

func seedMap(t *testing.T, store *memory.Store) (*aggregates.LearningMap, *entities.Article) {
	t.Helper()
	ctx := context.Background()

	lm, err := aggregates.NewLearningMap("subject-1", "user-1", "Layout Map")
	require.NoError(t, err)
	root, err := entities.NewArticle("user-1", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))

	require.NoError(t, store.LearningMaps().Save(ctx, lm))
	require.NoError(t, store.Articles().Save(ctx, root))
	return lm, root
}

func growMap(t *testing.T, store *memory.Store, lm *aggregates.LearningMap, parent *entities.Article) *entities.Article {
	t.Helper()
	ctx := context.Background()

	child, err := entities.NewArticle("user-1", lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), parent.ID(), child.ID(), "Go deeper", false)
	require.NoError(t, err)
	require.NoError(t, lm.AddArticleWithQuestion(child, q))
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q))
	return child
}

func nodeByID(result *queries.GetMapLayoutResult, id string) *queries.LayoutNodeDTO {
	for i := range result.Nodes {
		if result.Nodes[i].ID == id {
			return &result.Nodes[i]
		}
	}
	return nil
}

func TestGetMapLayout_ComputesFreshLayout(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)
	left := growMap(t, store, lm, root)
	right := growMap(t, store, lm, root)

	handler := newLayoutHandler(t, store)
	result, err := handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-1",
		LearningMapID: lm.ID().String(),
	})
	require.NoError(t, err)

	assert.False(t, result.FromSnapshot)
	assert.Equal(t, 3, result.Stats.NodeCount)
	assert.Equal(t, 2, result.Stats.EdgeCount)
	assert.Equal(t, 2, result.Stats.Depth)

	rootNode := nodeByID(result, root.ID().String())
	leftNode := nodeByID(result, left.ID().String())
	rightNode := nodeByID(result, right.ID().String())
	require.NotNil(t, rootNode)
	require.NotNil(t, leftNode)
	require.NotNil(t, rightNode)

	// Leaves take sequential slots; the parent centers over them
	assert.Equal(t, 100.0, leftNode.X)
	assert.Equal(t, 500.0, rightNode.X)
	assert.Equal(t, 300.0, rootNode.X)
	assert.Equal(t, 100.0, rootNode.Y)
	assert.Equal(t, 310.0, leftNode.Y)
	assert.Equal(t, leftNode.Y, rightNode.Y)
}

func TestGetMapLayout_ServesCoveringSnapshot(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)
	child := growMap(t, store, lm, root)

	require.NoError(t, store.LayoutSnapshots().Save(ctx, &ports.LayoutSnapshot{
		LearningMapID: lm.ID().String(),
		Nodes: []ports.SnapshotNode{
			{ID: root.ID().String(), X: 42, Y: 7, Visible: true},
			{ID: child.ID().String(), X: 42, Y: 250, Visible: true},
		},
		Edges: []ports.SnapshotEdge{
			{SourceID: root.ID().String(), TargetID: child.ID().String()},
		},
		NodeHeights: map[string]float64{root.ID().String(): 180},
	}))

	handler := newLayoutHandler(t, store)
	result, err := handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-1",
		LearningMapID: lm.ID().String(),
	})
	require.NoError(t, err)

	assert.True(t, result.FromSnapshot)
	rootNode := nodeByID(result, root.ID().String())
	require.NotNil(t, rootNode)
	assert.Equal(t, 42.0, rootNode.X)
	assert.Equal(t, 7.0, rootNode.Y)
	assert.Equal(t, 180.0, rootNode.Height)
}

func TestGetMapLayout_StaleSnapshotFallsBackToFreshLayout(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)

	// Snapshot taken before the newest article was asked into the map
	require.NoError(t, store.LayoutSnapshots().Save(ctx, &ports.LayoutSnapshot{
		LearningMapID: lm.ID().String(),
		Nodes: []ports.SnapshotNode{
			{ID: root.ID().String(), X: 42, Y: 7, Visible: true},
		},
		NodeHeights: map[string]float64{root.ID().String(): 200},
	}))
	child := growMap(t, store, lm, root)

	handler := newLayoutHandler(t, store)
	result, err := handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-1",
		LearningMapID: lm.ID().String(),
	})
	require.NoError(t, err)

	assert.False(t, result.FromSnapshot)

	// The fresh pass still honors the heights the snapshot measured
	childNode := nodeByID(result, child.ID().String())
	require.NotNil(t, childNode)
	assert.Equal(t, 360.0, childNode.Y)
}

func TestGetMapLayout_EmptyMapYieldsEmptyLayout(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	lm, err := aggregates.NewLearningMap("subject-1", "user-1", "Empty Map")
	require.NoError(t, err)
	require.NoError(t, store.LearningMaps().Save(ctx, lm))

	handler := newLayoutHandler(t, store)
	result, err := handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-1",
		LearningMapID: lm.ID().String(),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Nodes)
	assert.Empty(t, result.Edges)
}

func TestGetMapLayout_RejectsForeignUser(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, _ := seedMap(t, store)

	handler := newLayoutHandler(t, store)
	_, err := handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-2",
		LearningMapID: lm.ID().String(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsForbidden(err))
}

func TestGetMapLayout_BrokenMapIsStructural(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, _ := seedMap(t, store)

	// A second root row makes the stored shape unbuildable as a tree
	stray, err := entities.NewArticle("user-1", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, store.Articles().Save(ctx, stray))

	handler := newLayoutHandler(t, store)
	_, err = handler.Handle(ctx, queries.GetMapLayoutQuery{
		UserID:        "user-1",
		LearningMapID: lm.ID().String(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStructural(err))
}
