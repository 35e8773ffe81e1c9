package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"
)

func newMapWithRoot(t *testing.T) (*LearningMap, *entities.Article) {
	t.Helper()
	lm, err := NewLearningMap("subject-1", "user-1", "Test Map")
	require.NoError(t, err)

	root, err := entities.NewArticle("user-1", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))
	return lm, root
}

func askOn(t *testing.T, lm *LearningMap, parent *entities.Article, text string) *entities.Article {
	t.Helper()
	child, err := entities.NewArticle("user-1", lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), parent.ID(), child.ID(), text, false)
	require.NoError(t, err)
	require.NoError(t, lm.AddArticleWithQuestion(child, q))
	return child
}

func TestAddRootArticle_RejectsSecondRoot(t *testing.T) {
	lm, _ := newMapWithRoot(t)

	second, err := entities.NewArticle("user-1", lm.ID().String(), true)
	require.NoError(t, err)

	err = lm.AddRootArticle(second)
	require.Error(t, err)
	assert.Len(t, lm.Articles(), 1)
}

func TestAddArticleWithQuestion_RejectsUnknownParent(t *testing.T) {
	lm, _ := newMapWithRoot(t)

	orphan, err := entities.NewArticle("user-1", lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), valueobjects.NewArticleID(), orphan.ID(), "Attached to what?", false)
	require.NoError(t, err)

	require.Error(t, lm.AddArticleWithQuestion(orphan, q))
}

func TestAddArticleWithQuestion_RejectsSecondParentForChild(t *testing.T) {
	lm, root := newMapWithRoot(t)
	child := askOn(t, lm, root, "First question?")

	q, err := entities.NewQuestion(lm.ID().String(), root.ID(), child.ID(), "Second path to same child?", false)
	require.NoError(t, err)

	require.Error(t, lm.AddArticleWithQuestion(child, q))
	assert.Len(t, lm.Questions(), 1)
}

func TestRemoveArticle_CascadesOverSubtree(t *testing.T) {
	lm, root := newMapWithRoot(t)
	a := askOn(t, lm, root, "What is A?")
	b := askOn(t, lm, a, "What is B under A?")
	c := askOn(t, lm, b, "What is C under B?")
	sibling := askOn(t, lm, root, "What is the sibling?")

	removed, err := lm.RemoveArticle(a.ID())
	require.NoError(t, err)

	assert.Len(t, removed, 3)
	assert.False(t, lm.HasArticle(a.ID()))
	assert.False(t, lm.HasArticle(b.ID()))
	assert.False(t, lm.HasArticle(c.ID()))
	assert.True(t, lm.HasArticle(root.ID()))
	assert.True(t, lm.HasArticle(sibling.ID()))
	assert.Len(t, lm.Questions(), 1)

	require.NoError(t, lm.Validate())
}

func TestRemoveArticle_RefusesRootOfPopulatedMap(t *testing.T) {
	lm, root := newMapWithRoot(t)
	askOn(t, lm, root, "A child exists")

	_, err := lm.RemoveArticle(root.ID())
	require.Error(t, err)
	assert.True(t, lm.HasArticle(root.ID()))
}

func TestRemoveArticle_RefusesLoneRoot(t *testing.T) {
	lm, root := newMapWithRoot(t)

	_, err := lm.RemoveArticle(root.ID())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStructural(err))
	assert.True(t, lm.HasArticle(root.ID()), "a root-only map must keep its root")
}

func TestValidate_ChildOrderSurvivesReconstruction(t *testing.T) {
	lm, root := newMapWithRoot(t)
	first := askOn(t, lm, root, "First?")
	second := askOn(t, lm, root, "Second?")

	rebuilt, err := ReconstructLearningMap(lm.ID().String(), lm.SubjectID(), lm.UserID(), lm.Name(), lm.CreatedAt(), lm.UpdatedAt())
	require.NoError(t, err)
	for _, a := range []*entities.Article{root, first, second} {
		rebuilt.AttachArticle(a)
	}
	for _, q := range lm.Questions() {
		rebuilt.AttachQuestion(q)
	}

	require.NoError(t, rebuilt.Validate())

	qs := rebuilt.Questions()
	require.Len(t, qs, 2)
	assert.Equal(t, first.ID(), qs[0].ChildArticleID())
	assert.Equal(t, second.ID(), qs[1].ChildArticleID())
}
