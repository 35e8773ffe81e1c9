package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	pkgerrors "learnmap-backend/pkg/errors"
)

func seedMap(t *testing.T, store *Store) (*aggregates.LearningMap, *entities.Article) {
	t.Helper()
	ctx := context.Background()

	lm, err := aggregates.NewLearningMap("subject-1", "user-1", "Seeded Map")
	require.NoError(t, err)
	root, err := entities.NewArticle("user-1", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))

	require.NoError(t, store.LearningMaps().Save(ctx, lm))
	require.NoError(t, store.Articles().Save(ctx, root))
	return lm, root
}

func askPair(t *testing.T, lm *aggregates.LearningMap, parent *entities.Article) (*entities.Article, *entities.Question) {
	t.Helper()
	child, err := entities.NewArticle("user-1", lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), parent.ID(), child.ID(), "And then?", false)
	require.NoError(t, err)
	require.NoError(t, lm.AddArticleWithQuestion(child, q))
	return child, q
}

func TestGetByID_RehydratesInCreationOrder(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)

	first, q1 := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, first, q1))
	second, q2 := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, second, q2))

	loaded, err := store.LearningMaps().GetByID(ctx, lm.ID())
	require.NoError(t, err)

	assert.Len(t, loaded.Articles(), 3)
	qs := loaded.Questions()
	require.Len(t, qs, 2)
	assert.Equal(t, first.ID(), qs[0].ChildArticleID())
	assert.Equal(t, second.ID(), qs[1].ChildArticleID())
	require.NoError(t, loaded.Validate())
}

func TestCreateArticleFromQuestion_RejectsDuplicateChild(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)

	child, q := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q))

	err := store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestMapDelete_RemovesAllRows(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)

	child, q := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q))

	require.NoError(t, store.LearningMaps().Delete(ctx, lm.ID()))

	_, err := store.LearningMaps().GetByID(ctx, lm.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.Articles().GetByID(ctx, root.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = store.Questions().GetByID(ctx, q.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestQuestionDelete_FreesChildSlot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store)

	child, q := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q))

	require.NoError(t, store.Questions().Delete(ctx, q.ID()))
	require.NoError(t, store.Articles().Delete(ctx, child.ID()))

	// The slot is free again for a replacement pair
	replacement, rq := askPair(t, lm, root)
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, replacement, rq))
}

func TestUpdateContent_RequiresExistingArticle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	stray, err := entities.NewArticle("user-1", "missing-map", false)
	require.NoError(t, err)

	err = store.Articles().UpdateContent(ctx, stray)
	assert.True(t, pkgerrors.IsNotFound(err))
}
