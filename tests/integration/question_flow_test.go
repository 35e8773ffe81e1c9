package integration

import (
	"context"
	"testing"

	"learnmap-backend/application/commands"
	cmdhandlers "learnmap-backend/application/commands/handlers"
	"learnmap-backend/domain/core/valueobjects"
	memorybus "learnmap-backend/infrastructure/messaging/memory"
	"learnmap-backend/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeContentFlow records generation triggers instead of calling the LLM
type fakeContentFlow struct {
	calls [][2]string // learningMapID, articleID
}

func (f *fakeContentFlow) GenerateForArticle(ctx context.Context, learningMapID, articleID string) error {
	f.calls = append(f.calls, [2]string{learningMapID, articleID})
	return nil
}

// testLogger adapts testing output to the orchestrator's logger interface
type testLogger struct{ t *testing.T }

func (l testLogger) Debug(msg string, keysAndValues ...interface{}) { l.t.Log("DEBUG", msg) }
func (l testLogger) Info(msg string, keysAndValues ...interface{})  { l.t.Log("INFO", msg) }
func (l testLogger) Error(msg string, keysAndValues ...interface{}) { l.t.Log("ERROR", msg) }

type fixture struct {
	store         *memory.Store
	bus           *memorybus.EventBus
	createSubject *commands.CreateSubjectHandler
	createMap     *commands.CreateLearningMapHandler
	orchestrator  *cmdhandlers.AskQuestionOrchestrator
	deleteArticle *commands.DeleteArticleHandler
	flow          *fakeContentFlow
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	bus := memorybus.NewEventBus(logger)
	flow := &fakeContentFlow{}

	return &fixture{
		store:         store,
		bus:           bus,
		createSubject: commands.NewCreateSubjectHandler(store.Subjects(), bus, logger),
		createMap: commands.NewCreateLearningMapHandler(
			store.LearningMaps(), store.Articles(), store.Subjects(), bus, logger),
		orchestrator: cmdhandlers.NewAskQuestionOrchestrator(
			store.LearningMaps(), bus, flow, nil, false, testLogger{t}),
		deleteArticle: commands.NewDeleteArticleHandler(
			store.LearningMaps(), store.Articles(), store.Questions(), bus, logger),
		flow: flow,
	}
}

func (f *fixture) newMap(t *testing.T, userID string) *commands.CreateLearningMapResult {
	ctx := context.Background()

	subject, err := f.createSubject.Handle(ctx, commands.CreateSubjectCommand{
		UserID: userID,
		Title:  "Distributed Systems",
	})
	require.NoError(t, err)

	result, err := f.createMap.Handle(ctx, commands.CreateLearningMapCommand{
		UserID:    userID,
		SubjectID: subject.ID().String(),
		Name:      "Consensus",
	})
	require.NoError(t, err)
	return result
}

func TestAskQuestionCreatesLinkedArticle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")

	result, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: created.Root.ID().String(),
		Text:            "What is Paxos?",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Question)
	require.NotNil(t, result.Article)

	assert.Equal(t, "What is Paxos?", result.Question.Text())
	assert.True(t, result.Article.IsPending())

	lm, err := f.store.LearningMaps().GetByID(ctx, created.Map.ID())
	require.NoError(t, err)
	assert.Len(t, lm.Articles(), 2)
	assert.Len(t, lm.Questions(), 1)

	incoming := lm.IncomingQuestion(result.Article.ID())
	require.NotNil(t, incoming)
	assert.Equal(t, created.Root.ID(), incoming.ParentArticleID())

	// Content generation ran inline for the new article
	require.Len(t, f.flow.calls, 1)
	assert.Equal(t, created.Map.ID().String(), f.flow.calls[0][0])
	assert.Equal(t, result.Article.ID().String(), f.flow.calls[0][1])
}

func TestAskQuestionRejectsForeignMap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "owner")

	_, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "intruder",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: created.Root.ID().String(),
		Text:            "Can I write here?",
	})
	require.Error(t, err)

	lm, err := f.store.LearningMaps().GetByID(ctx, created.Map.ID())
	require.NoError(t, err)
	assert.Len(t, lm.Articles(), 1)
	assert.Empty(t, f.flow.calls)
}

func TestAskQuestionRejectsUnknownParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")

	_, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: valueobjects.NewArticleID().String(),
		Text:            "Where does this attach?",
	})
	require.Error(t, err)
}

func TestDeleteArticleRemovesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")

	first, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: created.Root.ID().String(),
		Text:            "What is Raft?",
	})
	require.NoError(t, err)

	second, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: first.Article.ID().String(),
		Text:            "How does leader election work?",
	})
	require.NoError(t, err)

	err = f.deleteArticle.Handle(ctx, commands.DeleteArticleCommand{
		UserID:        "user-1",
		LearningMapID: created.Map.ID().String(),
		ArticleID:     first.Article.ID().String(),
	})
	require.NoError(t, err)

	lm, err := f.store.LearningMaps().GetByID(ctx, created.Map.ID())
	require.NoError(t, err)
	assert.Len(t, lm.Articles(), 1, "only the root should remain")
	assert.False(t, lm.HasArticle(first.Article.ID()))
	assert.False(t, lm.HasArticle(second.Article.ID()))
}

func TestDeleteRootArticleFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")

	err := f.deleteArticle.Handle(ctx, commands.DeleteArticleCommand{
		UserID:        "user-1",
		LearningMapID: created.Map.ID().String(),
		ArticleID:     created.Root.ID().String(),
	})
	require.Error(t, err)

	lm, err := f.store.LearningMaps().GetByID(ctx, created.Map.ID())
	require.NoError(t, err)
	assert.True(t, lm.HasArticle(created.Root.ID()))
}

func TestCreateMapRequiresExistingSubject(t *testing.T) {
	f := newFixture(t)

	_, err := f.createMap.Handle(context.Background(), commands.CreateLearningMapCommand{
		UserID:    "user-1",
		SubjectID: "missing-subject",
		Name:      "Orphan",
	})
	require.Error(t, err)
}

func TestSaveLayoutSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")
	asked, err := f.orchestrator.Handle(ctx, commands.AskQuestionCommand{
		UserID:          "user-1",
		LearningMapID:   created.Map.ID().String(),
		ParentArticleID: created.Root.ID().String(),
		Text:            "What is two-phase commit?",
	})
	require.NoError(t, err)

	saveLayout := commands.NewSaveLayoutSnapshotHandler(
		f.store.LearningMaps(), f.store.LayoutSnapshots(), zaptest.NewLogger(t))

	err = saveLayout.Handle(ctx, commands.SaveLayoutSnapshotCommand{
		UserID:        "user-1",
		LearningMapID: created.Map.ID().String(),
		Nodes: []commands.SnapshotNodeInput{
			{ID: created.Root.ID().String(), X: 100, Y: 100, Visible: true},
			{ID: asked.Article.ID().String(), X: 100, Y: 310, Visible: true},
		},
		Edges: []commands.SnapshotEdgeInput{
			{SourceID: created.Root.ID().String(), TargetID: asked.Article.ID().String()},
		},
		NodeHeights: map[string]float64{created.Root.ID().String(): 180},
	})
	require.NoError(t, err)

	snap, err := f.store.LayoutSnapshots().Get(ctx, created.Map.ID().String())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Nodes, 2)
	assert.Equal(t, 180.0, snap.NodeHeights[created.Root.ID().String()])
}

func TestSaveLayoutSnapshotRejectsUnknownNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.newMap(t, "user-1")
	saveLayout := commands.NewSaveLayoutSnapshotHandler(
		f.store.LearningMaps(), f.store.LayoutSnapshots(), zaptest.NewLogger(t))

	err := saveLayout.Handle(ctx, commands.SaveLayoutSnapshotCommand{
		UserID:        "user-1",
		LearningMapID: created.Map.ID().String(),
		Nodes: []commands.SnapshotNodeInput{
			{ID: valueobjects.NewArticleID().String(), X: 0, Y: 0, Visible: true},
		},
	})
	require.Error(t, err)

	snap, err := f.store.LayoutSnapshots().Get(ctx, created.Map.ID().String())
	require.NoError(t, err)
	assert.Nil(t, snap)
}
