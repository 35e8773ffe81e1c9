package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnmap-backend/application/diagram"
	"learnmap-backend/application/ports"
	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/events"
	"learnmap-backend/domain/versioning"
)

// MapSession is the live diagram session for one learning map. It owns the
// mutator, scheduler, and reconciler for that map, fans rendered snapshots
// out to every connected client, and persists a layout snapshot once all
// nodes are visible so the next open does not need a fresh layout pass.
//
// A session is the render surface its mutator publishes to: RenderDiagram
// and CenterOn turn mutator effects into wire messages.
type MapSession struct {
	learningMapID string
	mutator       *diagram.DiagramMutator
	scheduler     *diagram.LayoutScheduler
	reconciler    *diagram.GraphReconciler
	snapshots     ports.LayoutSnapshotStore
	publisher     ports.EventPublisher
	logger        *zap.Logger

	versions    *versioning.VersioningService
	versionNum  int
	lastVersion *versioning.MapVersion

	mu             sync.Mutex
	clients        map[*Client]bool
	lastNodes      []diagram.NodeView
	lastEdges      []diagram.EdgeView
	savedNodeCount int
}

// NewMapSession builds a session and wires its diagram pipeline. The session
// registers itself as the mutator's render surface.
func NewMapSession(
	learningMapID string,
	engine diagram.LayoutEngine,
	domainCfg *config.DomainConfig,
	snapshots ports.LayoutSnapshotStore,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *MapSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MapSession{
		learningMapID: learningMapID,
		snapshots:     snapshots,
		publisher:     publisher,
		logger:        logger.With(zap.String("learning_map_id", learningMapID)),
		clients:       make(map[*Client]bool),
		versions:      versioning.NewVersioningService(),
	}
	s.mutator = diagram.NewDiagramMutator(s, domainCfg, s.logger)
	s.scheduler = diagram.NewLayoutScheduler(engine, s.logger)
	s.reconciler = diagram.NewGraphReconciler(s.mutator, s.scheduler, s.logger)
	return s
}

// Start primes the session from the canonical map. Measured heights from the
// persisted snapshot are restored before the first layout pass so reopening
// a map reproduces the layout the client last saw.
func (s *MapSession) Start(ctx context.Context, lm *aggregates.LearningMap) error {
	shape, err := diagram.ComputeDesiredShape(lm)
	if err != nil {
		return err
	}

	reqs := make([]diagram.StageRequest, 0, len(shape.Nodes))
	for _, n := range shape.Nodes {
		reqs = append(reqs, diagram.StageRequest{ID: n.ID, Kind: n.Kind, Data: n.Data, SourceID: n.SourceID})
	}
	s.mutator.StageDependentChain(reqs)

	if s.snapshots != nil {
		snap, err := s.snapshots.Get(ctx, s.learningMapID)
		if err != nil {
			s.logger.Warn("layout snapshot load failed", zap.Error(err))
		} else if snap != nil {
			for id, height := range snap.NodeHeights {
				s.mutator.SetMeasuredHeight(id, height)
			}
		}
	}

	return s.reconciler.Reconcile(ctx, lm)
}

// Reconcile brings the rendered diagram in line with the given canonical map.
// A structurally unchanged map is skipped outright, unless staged nodes are
// still waiting on a layout pass that failed and needs the retry.
func (s *MapSession) Reconcile(ctx context.Context, lm *aggregates.LearningMap) error {
	s.mu.Lock()
	last := s.lastVersion
	s.mu.Unlock()

	if unchanged, err := s.versions.Unchanged(lm, last); err == nil && unchanged {
		if len(s.mutator.PendingReveal()) == 0 {
			return nil
		}
	}

	if err := s.reconciler.Reconcile(ctx, lm); err != nil {
		return err
	}

	s.mu.Lock()
	s.versionNum++
	if v, err := s.versions.CreateVersion(lm, s.versionNum, "", "reconciled"); err == nil {
		s.lastVersion = v
	}
	s.mu.Unlock()
	return nil
}

// SetMeasuredHeight records a client-measured node height for the next
// layout pass.
func (s *MapSession) SetMeasuredHeight(nodeID string, height float64) {
	s.mutator.SetMeasuredHeight(nodeID, height)
}

// NodeClicked handles a viewer selecting a rendered node. Every viewer's
// camera recenters on it, and a selection event goes out on the bus for
// downstream consumers.
func (s *MapSession) NodeClicked(userID, nodeID string) {
	s.CenterOn(nodeID)

	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	event := events.NewNodeSelected(s.learningMapID, nodeID, userID, time.Now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("node selection event publish failed",
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
	}
}

// RevealAll forces every hidden node visible. Client-triggered recovery for
// a layout pass that never landed.
func (s *MapSession) RevealAll() {
	s.mutator.RevealAll()
}

// RenderDiagram implements diagram.RenderSurface. The full node/edge snapshot
// is broadcast to every connected client.
func (s *MapSession) RenderDiagram(nodes []diagram.NodeView, edges []diagram.EdgeView) {
	msg := renderMessage{Type: msgTypeRender, Nodes: nodes, Edges: edges}

	s.mu.Lock()
	s.lastNodes = nodes
	s.lastEdges = edges
	s.broadcastLocked(msg)
	shouldPersist := s.allVisible(nodes) && len(nodes) != s.savedNodeCount
	if shouldPersist {
		s.savedNodeCount = len(nodes)
	}
	s.mu.Unlock()

	if shouldPersist {
		go s.persistSnapshot(nodes, edges)
	}
}

// CenterOn implements diagram.RenderSurface.
func (s *MapSession) CenterOn(nodeID string) {
	msg := cameraMessage{Type: msgTypeCamera, NodeID: nodeID}

	s.mu.Lock()
	s.broadcastLocked(msg)
	s.mu.Unlock()
}

// broadcastLocked fans a message out to every client, dropping any whose
// outbound queue is full. Caller holds s.mu, so no send can race a drop.
func (s *MapSession) broadcastLocked(msg interface{}) {
	for client := range s.clients {
		if !client.trySend(msg) {
			client.logger.Warn("client send buffer full, dropping connection")
			delete(s.clients, client)
			client.close()
		}
	}
}

// attach registers a client and immediately sends it the current rendered
// state so a late joiner does not wait for the next mutation.
func (s *MapSession) attach(client *Client) {
	s.mu.Lock()
	s.clients[client] = true
	nodes, edges := s.lastNodes, s.lastEdges
	s.mu.Unlock()

	if nodes != nil {
		client.trySend(renderMessage{Type: msgTypeRender, Nodes: nodes, Edges: edges})
	}
}

// detach removes a client and reports how many remain. The hub drops the
// session when the count reaches zero.
func (s *MapSession) detach(client *Client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	return len(s.clients)
}

// persistSnapshot saves the fully revealed layout. Heights are read from the
// mutator rather than the views, since views carry positions only.
func (s *MapSession) persistSnapshot(nodes []diagram.NodeView, edges []diagram.EdgeView) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := &ports.LayoutSnapshot{
		LearningMapID: s.learningMapID,
		NodeHeights:   s.mutator.Heights(),
		SavedAt:       time.Now(),
	}
	for _, n := range nodes {
		snap.Nodes = append(snap.Nodes, ports.SnapshotNode{
			ID: n.ID, Kind: string(n.Kind), X: n.X, Y: n.Y, Visible: n.Visible,
		})
	}
	for _, e := range edges {
		snap.Edges = append(snap.Edges, ports.SnapshotEdge{
			ID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID,
		})
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Warn("layout snapshot save failed", zap.Error(err))
		return
	}
	if s.publisher != nil {
		event := events.NewLayoutSnapshotSaved(s.learningMapID, len(snap.Nodes), snap.SavedAt)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("snapshot event publish failed", zap.Error(err))
		}
	}
}

func (s *MapSession) allVisible(nodes []diagram.NodeView) bool {
	if len(nodes) == 0 {
		return false
	}
	for _, n := range nodes {
		if !n.Visible {
			return false
		}
	}
	return true
}
