package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"learnmap-backend/application/commands"
	cmdhandlers "learnmap-backend/application/commands/handlers"
	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/valueobjects"
	memorybus "learnmap-backend/infrastructure/messaging/memory"
	"learnmap-backend/infrastructure/persistence/memory"
)

func aggMapID(id string) aggregates.LearningMapID {
	return aggregates.LearningMapID(id)
}

func mustArticleID(t *testing.T, id string) valueobjects.ArticleID {
	t.Helper()
	parsed, err := valueobjects.NewArticleIDFromString(id)
	require.NoError(t, err)
	return parsed
}

// fakeGenerator returns canned content and records every request it sees
type fakeGenerator struct {
	body        string
	bodyErr     error
	insights    *ports.Insights
	insightsErr error
	requests    []ports.GenerationRequest
}

func (g *fakeGenerator) GenerateArticle(ctx context.Context, req ports.GenerationRequest) (string, error) {
	g.requests = append(g.requests, req)
	if g.bodyErr != nil {
		return "", g.bodyErr
	}
	return g.body, nil
}

func (g *fakeGenerator) DeriveInsights(ctx context.Context, body string) (*ports.Insights, error) {
	if g.insightsErr != nil {
		return nil, g.insightsErr
	}
	return g.insights, nil
}

type generationFixture struct {
	store   *memory.Store
	service *GenerationService
	gen     *fakeGenerator
	mapID   string
	rootID  string
	childID string
}

func newGenerationFixture(t *testing.T, gen *fakeGenerator) *generationFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	bus := memorybus.NewEventBus(logger)

	createSubject := commands.NewCreateSubjectHandler(store.Subjects(), bus, logger)
	createMap := commands.NewCreateLearningMapHandler(
		store.LearningMaps(), store.Articles(), store.Subjects(), bus, logger)

	ctx := context.Background()
	subject, err := createSubject.Handle(ctx, commands.CreateSubjectCommand{
		UserID: "user-1",
		Title:  "Databases",
	})
	require.NoError(t, err)

	created, err := createMap.Handle(ctx, commands.CreateLearningMapCommand{
		UserID:    "user-1",
		SubjectID: subject.ID().String(),
		Name:      "Indexing",
	})
	require.NoError(t, err)

	orchestrator := cmdhandlers.NewAskQuestionOrchestrator(
		store.LearningMaps(), bus, noopFlow{}, nil, true, nopLogger{})
	asked, err := orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: created.Root.ID().String(),
		Text:            "What is a B-tree?",
	})
	require.NoError(t, err)

	service := NewGenerationService(
		store.LearningMaps(), store.Articles(), store.Subjects(), gen, bus, logger)

	return &generationFixture{
		store:   store,
		service: service,
		gen:     gen,
		mapID:   created.Map.ID().String(),
		rootID:  created.Root.ID().String(),
		childID: asked.Article.ID().String(),
	}
}

type noopFlow struct{}

func (noopFlow) GenerateForArticle(ctx context.Context, learningMapID, articleID string) error {
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func TestGenerateForArticle_FillsContentAndInsights(t *testing.T) {
	gen := &fakeGenerator{
		body: "A B-tree is a balanced search tree optimized for block storage.",
		insights: &ports.Insights{
			Summary:   "Balanced on-disk search tree.",
			Takeaways: []string{"Logarithmic lookups", "Wide fan-out"},
			Tooltips:  map[string]string{"fan-out": "children per node"},
		},
	}
	f := newGenerationFixture(t, gen)
	ctx := context.Background()

	require.NoError(t, f.service.GenerateForArticle(ctx, f.mapID, f.childID))

	lm, err := f.store.LearningMaps().GetByID(ctx, aggMapID(f.mapID))
	require.NoError(t, err)
	article, err := lm.GetArticle(mustArticleID(t, f.childID))
	require.NoError(t, err)

	assert.False(t, article.IsPending())
	assert.Equal(t, gen.body, article.Content().Body())
	assert.True(t, article.Content().HasInsights())
	assert.Equal(t, "Balanced on-disk search tree.", article.Content().Summary())

	// Prompt context carried the subject and question
	require.Len(t, gen.requests, 1)
	assert.Equal(t, "Databases", gen.requests[0].SubjectTitle)
	assert.Equal(t, "What is a B-tree?", gen.requests[0].QuestionText)
}

func TestGenerateForArticle_SkipsFilledArticle(t *testing.T) {
	gen := &fakeGenerator{body: "first body", insights: &ports.Insights{Summary: "s"}}
	f := newGenerationFixture(t, gen)
	ctx := context.Background()

	require.NoError(t, f.service.GenerateForArticle(ctx, f.mapID, f.childID))
	require.NoError(t, f.service.GenerateForArticle(ctx, f.mapID, f.childID))

	assert.Len(t, gen.requests, 1, "second call should not regenerate")
}

func TestGenerateForArticle_InsightFailureLeavesContent(t *testing.T) {
	gen := &fakeGenerator{
		body:        "Body without insights.",
		insightsErr: errors.New("model overloaded"),
	}
	f := newGenerationFixture(t, gen)
	ctx := context.Background()

	require.NoError(t, f.service.GenerateForArticle(ctx, f.mapID, f.childID))

	lm, err := f.store.LearningMaps().GetByID(ctx, aggMapID(f.mapID))
	require.NoError(t, err)
	article, err := lm.GetArticle(mustArticleID(t, f.childID))
	require.NoError(t, err)

	assert.False(t, article.IsPending())
	assert.False(t, article.Content().HasInsights())
}

func TestGenerateForArticle_GeneratorFailureKeepsPending(t *testing.T) {
	gen := &fakeGenerator{bodyErr: errors.New("rate limited")}
	f := newGenerationFixture(t, gen)
	ctx := context.Background()

	require.Error(t, f.service.GenerateForArticle(ctx, f.mapID, f.childID))

	lm, err := f.store.LearningMaps().GetByID(ctx, aggMapID(f.mapID))
	require.NoError(t, err)
	article, err := lm.GetArticle(mustArticleID(t, f.childID))
	require.NoError(t, err)
	assert.True(t, article.IsPending())
}

func TestEnrichArticle_RejectsPendingArticle(t *testing.T) {
	gen := &fakeGenerator{insights: &ports.Insights{Summary: "s"}}
	f := newGenerationFixture(t, gen)

	require.Error(t, f.service.EnrichArticle(context.Background(), f.childID))
}
