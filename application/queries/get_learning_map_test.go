package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/infrastructure/persistence/memory"
	pkgerrors "learnmap-backend/pkg/errors"
)

// fakeCache is a map-backed cache that counts writes
type fakeCache struct {
	values map[string]interface{}
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]interface{})}
}

func (c *fakeCache) Get(ctx context.Context, key string) (interface{}, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.values[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *fakeCache) Clear(ctx context.Context) error {
	c.values = make(map[string]interface{})
	return nil
}

func seedMap(t *testing.T, store *memory.Store, userID, subjectID, name string) (*aggregates.LearningMap, *entities.Article) {
	t.Helper()
	ctx := context.Background()

	lm, err := aggregates.NewLearningMap(subjectID, userID, name)
	require.NoError(t, err)
	root, err := entities.NewArticle(userID, lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))

	require.NoError(t, store.LearningMaps().Save(ctx, lm))
	require.NoError(t, store.Articles().Save(ctx, root))
	return lm, root
}

func askOn(t *testing.T, store *memory.Store, lm *aggregates.LearningMap, parent *entities.Article, text string) *entities.Article {
	t.Helper()
	ctx := context.Background()

	child, err := entities.NewArticle(lm.UserID(), lm.ID().String(), false)
	require.NoError(t, err)
	q, err := entities.NewQuestion(lm.ID().String(), parent.ID(), child.ID(), text, false)
	require.NoError(t, err)
	require.NoError(t, lm.AddArticleWithQuestion(child, q))
	require.NoError(t, store.LearningMaps().CreateArticleFromQuestion(ctx, lm, child, q))
	return child
}

func TestGetLearningMap_ReturnsArticlesAndQuestions(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store, "user-1", "subject-1", "Operating Systems")
	askOn(t, store, lm, root, "What is a page table?")

	handler := NewGetLearningMapHandler(store.LearningMaps(), newFakeCache())
	result, err := handler.Handle(ctx, GetLearningMapQuery{
		LearningMapID: lm.ID().String(),
		UserID:        "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, lm.ID().String(), result.ID)
	assert.Equal(t, "subject-1", result.SubjectID)
	assert.Equal(t, "Operating Systems", result.Name)
	assert.Len(t, result.Articles, 2)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, "What is a page table?", result.Questions[0].Text)
	assert.Equal(t, root.ID().String(), result.Questions[0].ParentArticleID)
}

func TestGetLearningMap_ServesCachedResult(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, root := seedMap(t, store, "user-1", "subject-1", "Networking")

	cache := newFakeCache()
	handler := NewGetLearningMapHandler(store.LearningMaps(), cache)
	query := GetLearningMapQuery{LearningMapID: lm.ID().String(), UserID: "user-1"}

	first, err := handler.Handle(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// The map grows, but the cached result is served until it expires
	askOn(t, store, lm, root, "What is TCP?")

	second, err := handler.Handle(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Len(t, second.Articles, len(first.Articles))
}

func TestGetLearningMap_RejectsForeignUser(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	lm, _ := seedMap(t, store, "user-1", "subject-1", "Compilers")

	handler := NewGetLearningMapHandler(store.LearningMaps(), newFakeCache())
	_, err := handler.Handle(ctx, GetLearningMapQuery{
		LearningMapID: lm.ID().String(),
		UserID:        "user-2",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsForbidden(err))
}

func TestGetArticle_RejectsForeignUser(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, root := seedMap(t, store, "user-1", "subject-1", "Cryptography")

	handler := NewGetArticleHandler(store.Articles())
	_, err := handler.Handle(ctx, GetArticleQuery{
		UserID:    "user-2",
		ArticleID: root.ID().String(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsForbidden(err))
}

func TestListLearningMaps_FiltersBySubject(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	seedMap(t, store, "user-1", "subject-a", "Map A")
	seedMap(t, store, "user-1", "subject-b", "Map B")
	seedMap(t, store, "user-2", "subject-a", "Foreign Map")

	handler := NewListLearningMapsHandler(store.LearningMaps())

	all, err := handler.Handle(ctx, ListLearningMapsQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalCount)

	filtered, err := handler.Handle(ctx, ListLearningMapsQuery{UserID: "user-1", SubjectID: "subject-a"})
	require.NoError(t, err)
	require.Len(t, filtered.Maps, 1)
	assert.Equal(t, "Map A", filtered.Maps[0].Name)
}

func TestListSubjects_ReturnsOnlyOwnSubjects(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	mine, err := aggregates.NewSubject("user-1", "Databases", "Storage engines and query planning")
	require.NoError(t, err)
	theirs, err := aggregates.NewSubject("user-2", "Astronomy", "")
	require.NoError(t, err)
	require.NoError(t, store.Subjects().Save(ctx, mine))
	require.NoError(t, store.Subjects().Save(ctx, theirs))

	handler := NewListSubjectsHandler(store.Subjects())
	result, err := handler.Handle(ctx, ListSubjectsQuery{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, result.Subjects, 1)
	assert.Equal(t, "Databases", result.Subjects[0].Title)
}
