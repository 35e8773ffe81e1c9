package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnmap-backend/domain/core/entities"
)

func testLayoutConfig() LayoutConfig {
	return LayoutConfig{
		DefaultNodeHeight: 150,
		HorizontalSpacing: 400,
		VerticalSpacing:   60,
		OriginX:           100,
		OriginY:           100,
	}
}

func placedByID(result *LayoutResult) map[string]PlacedNode {
	out := make(map[string]PlacedNode, len(result.Nodes))
	for _, n := range result.Nodes {
		out[n.ID] = n
	}
	return out
}

// buildFanOut returns a root with n leaf children, plus the leaf IDs in
// question order.
func buildFanOut(t *testing.T, n int) (*Node, []string) {
	t.Helper()
	root := newTestArticle(t, true)
	articles := []*entities.Article{root}
	var questions []*entities.Question
	var leafIDs []string
	for i := 0; i < n; i++ {
		leaf := newTestArticle(t, false)
		articles = append(articles, leaf)
		questions = append(questions, newTestQuestion(t, root, leaf))
		leafIDs = append(leafIDs, leaf.ID().String())
	}
	tree := Build(articles, questions)
	require.NotNil(t, tree)
	return tree, leafIDs
}

func TestLayout_LeafSlotsEquallySpaced(t *testing.T) {
	tree, leafIDs := buildFanOut(t, 3)

	result := Layout(tree, nil, testLayoutConfig())
	placed := placedByID(result)

	assert.Equal(t, 100.0, placed[leafIDs[0]].X)
	assert.Equal(t, 500.0, placed[leafIDs[1]].X)
	assert.Equal(t, 900.0, placed[leafIDs[2]].X)
}

func TestLayout_ParentCenteredOverChildren(t *testing.T) {
	tree, leafIDs := buildFanOut(t, 2)

	result := Layout(tree, nil, testLayoutConfig())
	placed := placedByID(result)

	assert.Equal(t, 100.0, placed[leafIDs[0]].X)
	assert.Equal(t, 500.0, placed[leafIDs[1]].X)
	assert.Equal(t, 300.0, placed[tree.ID()].X)
}

func TestLayout_YAccumulatesParentHeightPlusSpacing(t *testing.T) {
	tree, leafIDs := buildFanOut(t, 2)

	heights := map[string]float64{tree.ID(): 220}
	result := Layout(tree, heights, testLayoutConfig())
	placed := placedByID(result)

	assert.Equal(t, 100.0, placed[tree.ID()].Y)
	// child Y = root Y + root measured height + vertical spacing
	assert.Equal(t, 380.0, placed[leafIDs[0]].Y)
	assert.Equal(t, 380.0, placed[leafIDs[1]].Y)
}

func TestLayout_MissingHeightUsesDefault(t *testing.T) {
	tree, leafIDs := buildFanOut(t, 1)

	result := Layout(tree, map[string]float64{}, testLayoutConfig())
	placed := placedByID(result)

	assert.Equal(t, 310.0, placed[leafIDs[0]].Y)
	assert.Equal(t, 150.0, placed[tree.ID()].Height)
}

func TestLayout_Deterministic(t *testing.T) {
	root := newTestArticle(t, true)
	a1 := newTestArticle(t, false)
	a2 := newTestArticle(t, false)
	a3 := newTestArticle(t, false)
	articles := []*entities.Article{root, a1, a2, a3}
	questions := []*entities.Question{
		newTestQuestion(t, root, a1),
		newTestQuestion(t, a1, a2),
		newTestQuestion(t, root, a3),
	}
	tree := Build(articles, questions)
	require.NotNil(t, tree)

	heights := map[string]float64{a1.ID().String(): 300}
	first := Layout(tree, heights, testLayoutConfig())
	second := Layout(tree, heights, testLayoutConfig())

	assert.Equal(t, first, second)
}

func TestLayout_EdgesLabeledWithQuestions(t *testing.T) {
	root := newTestArticle(t, true)
	child := newTestArticle(t, false)
	q := newTestQuestion(t, root, child)
	tree := Build([]*entities.Article{root, child}, []*entities.Question{q})
	require.NotNil(t, tree)

	result := Layout(tree, nil, testLayoutConfig())

	require.Len(t, result.Edges, 1)
	assert.Equal(t, root.ID().String(), result.Edges[0].SourceID)
	assert.Equal(t, child.ID().String(), result.Edges[0].TargetID)
	assert.Equal(t, q.ID().String(), result.Edges[0].QuestionID)
}

func TestLayoutForest_StacksTreesVertically(t *testing.T) {
	first, _ := buildFanOut(t, 2)
	second, _ := buildFanOut(t, 1)

	result := LayoutForest([]*Node{first, second}, nil, testLayoutConfig())
	placed := placedByID(result)

	assert.Equal(t, 100.0, placed[first.ID()].Y)
	// first subtree extent: 150 (root) + 60 + 150 (leaves), then +60 spacing
	assert.Equal(t, 520.0, placed[second.ID()].Y)
}

func TestLayout_NilRootYieldsEmptyResult(t *testing.T) {
	result := Layout(nil, nil, testLayoutConfig())

	assert.Empty(t, result.Nodes)
	assert.Empty(t, result.Edges)
}
