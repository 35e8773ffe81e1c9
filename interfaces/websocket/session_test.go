package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
	"learnmap-backend/application/ports"
	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
)

// gridEngine stacks nodes vertically and records the heights it was given.
type gridEngine struct {
	mu      sync.Mutex
	heights []map[string]float64
}

func (e *gridEngine) Compute(ctx context.Context, nodes []diagram.LayoutNode, edges []diagram.LayoutEdge, direction diagram.Direction) (*diagram.LayoutOutput, error) {
	seen := make(map[string]float64, len(nodes))
	out := &diagram.LayoutOutput{}
	for i, n := range nodes {
		seen[n.ID] = n.Height
		out.Nodes = append(out.Nodes, diagram.PositionedNode{ID: n.ID, X: 100, Y: 100 + float64(i)*210})
	}
	e.mu.Lock()
	e.heights = append(e.heights, seen)
	e.mu.Unlock()
	return out, nil
}

func (e *gridEngine) lastHeights() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.heights) == 0 {
		return nil
	}
	return e.heights[len(e.heights)-1]
}

// memorySnapshots is an in-memory ports.LayoutSnapshotStore.
type memorySnapshots struct {
	mu    sync.Mutex
	snaps map[string]*ports.LayoutSnapshot
	saves int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snaps: make(map[string]*ports.LayoutSnapshot)}
}

func (s *memorySnapshots) Save(ctx context.Context, snapshot *ports.LayoutSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snapshot.LearningMapID] = snapshot
	s.saves++
	return nil
}

func (s *memorySnapshots) Get(ctx context.Context, learningMapID string) (*ports.LayoutSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps[learningMapID], nil
}

func (s *memorySnapshots) Delete(ctx context.Context, learningMapID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, learningMapID)
	return nil
}

func (s *memorySnapshots) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// capturePublisher records every event handed to it.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *capturePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, e := range batch {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *capturePublisher) published() []events.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newSessionMap(t *testing.T) (*aggregates.LearningMap, *entities.Article) {
	t.Helper()
	lm, err := aggregates.NewLearningMap("subj1", "user123", "Session Map")
	require.NoError(t, err)
	root, err := entities.NewArticle("user123", lm.ID().String(), true)
	require.NoError(t, err)
	require.NoError(t, lm.AddRootArticle(root))
	return lm, root
}

func newTestClient(session *MapSession) *Client {
	return &Client{
		session: session,
		send:    make(chan interface{}, sendBufferSize),
		logger:  zap.NewNop(),
	}
}

// drain collects everything currently queued for the client.
func drain(c *Client) []interface{} {
	var out []interface{}
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func waitForVisible(t *testing.T, c *Client, want int) renderMessage {
	t.Helper()
	var last renderMessage
	require.Eventually(t, func() bool {
		for _, msg := range drain(c) {
			if r, ok := msg.(renderMessage); ok {
				last = r
			}
		}
		if len(last.Nodes) != want {
			return false
		}
		for _, n := range last.Nodes {
			if !n.Visible {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "diagram never became fully visible")
	return last
}

func TestMapSession_StartRevealsMapToAttachedClient(t *testing.T) {
	lm, root := newSessionMap(t)
	engine := &gridEngine{}
	session := NewMapSession(lm.ID().String(), engine, config.DefaultDomainConfig(), newMemorySnapshots(), nil, zap.NewNop())
	client := newTestClient(session)
	session.attach(client)

	require.NoError(t, session.Start(context.Background(), lm))

	render := waitForVisible(t, client, 1)
	assert.Equal(t, root.ID().String(), render.Nodes[0].ID)
}

func TestMapSession_LateJoinerGetsCurrentRender(t *testing.T) {
	lm, _ := newSessionMap(t)
	session := NewMapSession(lm.ID().String(), &gridEngine{}, config.DefaultDomainConfig(), newMemorySnapshots(), nil, zap.NewNop())
	require.NoError(t, session.Start(context.Background(), lm))

	first := newTestClient(session)
	session.attach(first)
	waitForVisible(t, first, 1)

	late := newTestClient(session)
	session.attach(late)

	msgs := drain(late)
	require.NotEmpty(t, msgs, "late joiner must receive the current state immediately")
	render, ok := msgs[0].(renderMessage)
	require.True(t, ok)
	assert.Len(t, render.Nodes, 1)
}

func TestMapSession_SnapshotSavedOnceFullyVisible(t *testing.T) {
	lm, _ := newSessionMap(t)
	snaps := newMemorySnapshots()
	session := NewMapSession(lm.ID().String(), &gridEngine{}, config.DefaultDomainConfig(), snaps, nil, zap.NewNop())

	require.NoError(t, session.Start(context.Background(), lm))

	require.Eventually(t, func() bool {
		saved, _ := snaps.Get(context.Background(), lm.ID().String())
		return saved != nil
	}, time.Second, 5*time.Millisecond)

	saved, _ := snaps.Get(context.Background(), lm.ID().String())
	require.Len(t, saved.Nodes, 1)
	assert.True(t, saved.Nodes[0].Visible)
}

func TestMapSession_StartRestoresMeasuredHeightsFromSnapshot(t *testing.T) {
	lm, root := newSessionMap(t)
	snaps := newMemorySnapshots()
	rootID := root.ID().String()
	require.NoError(t, snaps.Save(context.Background(), &ports.LayoutSnapshot{
		LearningMapID: lm.ID().String(),
		NodeHeights:   map[string]float64{rootID: 420},
		SavedAt:       time.Now(),
	}))

	engine := &gridEngine{}
	session := NewMapSession(lm.ID().String(), engine, config.DefaultDomainConfig(), snaps, nil, zap.NewNop())
	client := newTestClient(session)
	session.attach(client)

	require.NoError(t, session.Start(context.Background(), lm))
	waitForVisible(t, client, 1)

	assert.Equal(t, float64(420), engine.lastHeights()[rootID],
		"snapshot heights must feed the first layout pass")
}

func TestMapSession_NodeClickCentersAndPublishesSelection(t *testing.T) {
	lm, root := newSessionMap(t)
	publisher := &capturePublisher{}
	session := NewMapSession(lm.ID().String(), &gridEngine{}, config.DefaultDomainConfig(), newMemorySnapshots(), publisher, zap.NewNop())
	client := newTestClient(session)
	client.userID = "user123"
	session.attach(client)
	require.NoError(t, session.Start(context.Background(), lm))
	waitForVisible(t, client, 1)

	client.routeMessage(&clientMessage{Type: msgTypeNodeClick, NodeID: root.ID().String()})

	var camera *cameraMessage
	for _, msg := range drain(client) {
		if c, ok := msg.(cameraMessage); ok {
			camera = &c
		}
	}
	require.NotNil(t, camera, "every viewer must be recentered on the clicked node")
	assert.Equal(t, root.ID().String(), camera.NodeID)

	var selected *events.NodeSelected
	for _, e := range publisher.published() {
		if sel, ok := e.(events.NodeSelected); ok {
			selected = &sel
		}
	}
	require.NotNil(t, selected, "a selection event must go out on the bus")
	assert.Equal(t, lm.ID().String(), selected.LearningMapID)
	assert.Equal(t, root.ID().String(), selected.NodeID)
	assert.Equal(t, "user123", selected.UserID)
}

func TestMapSession_DetachReportsRemaining(t *testing.T) {
	lm, _ := newSessionMap(t)
	session := NewMapSession(lm.ID().String(), &gridEngine{}, config.DefaultDomainConfig(), newMemorySnapshots(), nil, zap.NewNop())
	a := newTestClient(session)
	b := newTestClient(session)
	session.attach(a)
	session.attach(b)

	assert.Equal(t, 1, session.detach(a))
	assert.Equal(t, 0, session.detach(b))
}

func TestMapSession_BroadcastDropsStalledClient(t *testing.T) {
	lm, _ := newSessionMap(t)
	session := NewMapSession(lm.ID().String(), &gridEngine{}, config.DefaultDomainConfig(), newMemorySnapshots(), nil, zap.NewNop())
	stalled := &Client{session: session, send: make(chan interface{}), logger: zap.NewNop()}
	session.attach(stalled)

	session.CenterOn("n1")

	session.mu.Lock()
	remaining := len(session.clients)
	session.mu.Unlock()
	assert.Zero(t, remaining, "client with a full buffer must be dropped")
	_, open := <-stalled.send
	assert.False(t, open, "dropped client's channel must be closed")
}

func TestHub_CanHandleDiagramEvents(t *testing.T) {
	h := NewHub(nil, nil, &gridEngine{}, config.DefaultDomainConfig(), nil, zap.NewNop())

	assert.True(t, h.CanHandle("article.content_filled"))
	assert.True(t, h.CanHandle("question.asked"))
	assert.False(t, h.CanHandle("subject.created"))
}

func TestHub_HandleIgnoresMapsNobodyIsViewing(t *testing.T) {
	h := NewHub(nil, nil, &gridEngine{}, config.DefaultDomainConfig(), nil, zap.NewNop())

	event := events.NewQuestionAsked(
		valueobjects.NewQuestionID(),
		"map-without-session",
		valueobjects.NewArticleID(),
		valueobjects.NewArticleID(),
		"Why?", false, time.Now(),
	)
	assert.NoError(t, h.Handle(context.Background(), event))
}
