package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnmap-backend/domain/core/entities"
)

func newTestArticle(t *testing.T, isRoot bool) *entities.Article {
	t.Helper()
	a, err := entities.NewArticle("user123", "map123", isRoot)
	require.NoError(t, err)
	return a
}

func newTestQuestion(t *testing.T, parent, child *entities.Article) *entities.Question {
	t.Helper()
	q, err := entities.NewQuestion("map123", parent.ID(), child.ID(), "Why does this follow?", false)
	require.NoError(t, err)
	return q
}

func collectIDs(root *Node) map[string]int {
	counts := make(map[string]int)
	var walk func(n *Node)
	walk = func(n *Node) {
		counts[n.ID()]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return counts
}

func TestBuild_SingleRootArticle(t *testing.T) {
	root := newTestArticle(t, true)

	tree := Build([]*entities.Article{root}, nil)

	require.NotNil(t, tree)
	assert.Equal(t, root.ID().String(), tree.ID())
	assert.True(t, tree.IsLeaf())
	assert.Nil(t, tree.Question)
}

func TestBuild_EveryArticleAppearsExactlyOnce(t *testing.T) {
	root := newTestArticle(t, true)
	a1 := newTestArticle(t, false)
	a2 := newTestArticle(t, false)
	a3 := newTestArticle(t, false)

	questions := []*entities.Question{
		newTestQuestion(t, root, a1),
		newTestQuestion(t, root, a2),
		newTestQuestion(t, a1, a3),
	}

	tree := Build([]*entities.Article{root, a1, a2, a3}, questions)

	require.NotNil(t, tree)
	assert.Equal(t, 4, tree.Size())
	for id, count := range collectIDs(tree) {
		assert.Equal(t, 1, count, "article %s appears %d times", id, count)
	}
}

func TestBuild_ChildOrderFollowsQuestionOrder(t *testing.T) {
	root := newTestArticle(t, true)
	a1 := newTestArticle(t, false)
	a2 := newTestArticle(t, false)
	a3 := newTestArticle(t, false)

	questions := []*entities.Question{
		newTestQuestion(t, root, a2),
		newTestQuestion(t, root, a3),
		newTestQuestion(t, root, a1),
	}

	tree := Build([]*entities.Article{root, a1, a2, a3}, questions)

	require.NotNil(t, tree)
	require.Len(t, tree.Children, 3)
	assert.Equal(t, a2.ID().String(), tree.Children[0].ID())
	assert.Equal(t, a3.ID().String(), tree.Children[1].ID())
	assert.Equal(t, a1.ID().String(), tree.Children[2].ID())
}

func TestBuild_EmptyArticleSet(t *testing.T) {
	assert.Nil(t, Build(nil, nil))
}

func TestBuild_NoRoot(t *testing.T) {
	a1 := newTestArticle(t, false)
	a2 := newTestArticle(t, false)

	tree := Build([]*entities.Article{a1, a2}, []*entities.Question{newTestQuestion(t, a1, a2)})

	assert.Nil(t, tree)
}

func TestBuild_MultipleRoots(t *testing.T) {
	r1 := newTestArticle(t, true)
	r2 := newTestArticle(t, true)

	assert.Nil(t, Build([]*entities.Article{r1, r2}, nil))
}

func TestBuild_MultipleArticlesWithoutQuestions(t *testing.T) {
	root := newTestArticle(t, true)
	orphan := newTestArticle(t, false)

	assert.Nil(t, Build([]*entities.Article{root, orphan}, nil))
}

func TestBuild_CycleThroughRootRejected(t *testing.T) {
	a := newTestArticle(t, true)
	b := newTestArticle(t, false)

	questions := []*entities.Question{
		newTestQuestion(t, a, b),
		newTestQuestion(t, b, a),
	}

	assert.Nil(t, Build([]*entities.Article{a, b}, questions))
}

func TestBuild_MultiParentRejected(t *testing.T) {
	root := newTestArticle(t, true)
	a1 := newTestArticle(t, false)
	a2 := newTestArticle(t, false)

	questions := []*entities.Question{
		newTestQuestion(t, root, a1),
		newTestQuestion(t, root, a2),
		newTestQuestion(t, a1, a2),
	}

	assert.Nil(t, Build([]*entities.Article{root, a1, a2}, questions))
}

func TestBuild_DanglingQuestionSkipped(t *testing.T) {
	root := newTestArticle(t, true)
	a1 := newTestArticle(t, false)
	missing := newTestArticle(t, false)

	questions := []*entities.Question{
		newTestQuestion(t, root, a1),
		newTestQuestion(t, root, missing),
		newTestQuestion(t, missing, a1),
	}

	tree := Build([]*entities.Article{root, a1}, questions)

	require.NotNil(t, tree)
	assert.Equal(t, 2, tree.Size())
	require.Len(t, tree.Children, 1)
	assert.Equal(t, a1.ID().String(), tree.Children[0].ID())
}
