package diagram

import (
	"sync"

	"go.uber.org/zap"

	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"
)

// DiagramMutator owns the live rendered node/edge collections. Every read
// and write of rendered state goes through it; staging, content replacement,
// layout application, and reveals each publish a single snapshot to the
// render surface so observers never see a half-applied batch.
type DiagramMutator struct {
	mu      sync.Mutex
	cfg     *config.DomainConfig
	logger  *zap.Logger
	surface RenderSurface

	nodes map[string]*RenderedNode
	edges map[string]*RenderedEdge

	// order and edgeOrder track insertion order; pending tracks nodes
	// staged but not yet revealed, in stage order.
	order     []string
	edgeOrder []string
	pending   []string

	lastAdded    string
	rootID       string
	centeredOnce bool
}

// NewDiagramMutator creates a mutator bound to one render surface.
func NewDiagramMutator(surface RenderSurface, cfg *config.DomainConfig, logger *zap.Logger) *DiagramMutator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiagramMutator{
		cfg:     cfg,
		logger:  logger,
		surface: surface,
		nodes:   make(map[string]*RenderedNode),
		edges:   make(map[string]*RenderedEdge),
	}
}

// StageNode adds one node hidden at the off-screen sentinel position, with
// an edge from its source node (or the most recently added node when no
// source is named). The node is marked pending-reveal until a layout pass
// places it and RevealPending runs.
func (m *DiagramMutator) StageNode(req StageRequest) {
	m.mu.Lock()
	m.stageLocked(req)
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.surface.RenderDiagram(views, edges)
}

// StageDependentChain stages a batch of new nodes in one atomic collection
// update. Nodes are ordered so that a node is staged only after any node it
// depends on within the same batch, which lets a multi-hop chain (article,
// question, article) appear in a single update with no intermediate
// inconsistent render. Source resolution prefers nodes added earlier in the
// batch over the previously rendered set.
func (m *DiagramMutator) StageDependentChain(reqs []StageRequest) {
	if len(reqs) == 0 {
		return
	}
	ordered := orderByDependency(reqs)

	m.mu.Lock()
	for _, req := range ordered {
		m.stageLocked(req)
	}
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Debug("staged node batch",
		zap.Int("count", len(ordered)),
	)
	m.surface.RenderDiagram(views, edges)
}

// stageLocked applies the staging logic for one node. Caller holds m.mu.
func (m *DiagramMutator) stageLocked(req StageRequest) {
	if _, exists := m.nodes[req.ID]; exists {
		m.logger.Debug("node already staged, skipping", zap.String("node_id", req.ID))
		return
	}

	node := &RenderedNode{
		id:       req.ID,
		kind:     req.Kind,
		data:     req.Data,
		position: m.position(m.cfg.OffscreenX, m.cfg.OffscreenY),
		phase:    PhaseStaged,
	}

	sourceID := req.SourceID
	if sourceID == "" {
		sourceID = m.lastAdded
	}
	if source, ok := m.nodes[sourceID]; ok {
		hint := source.position.Translate(m.cfg.StageOffsetX, m.cfg.StageOffsetY)
		node.finalPosition = &hint
		eid := edgeID(sourceID, req.ID)
		m.edges[eid] = &RenderedEdge{id: eid, sourceID: sourceID, targetID: req.ID}
		m.edgeOrder = append(m.edgeOrder, eid)
	}

	m.nodes[req.ID] = node
	m.order = append(m.order, req.ID)
	m.pending = append(m.pending, req.ID)
	m.lastAdded = req.ID
	if m.rootID == "" && req.Kind == KindArticle {
		m.rootID = req.ID
	}
}

// ReplaceNode swaps a node's content in place. Position and visibility are
// untouched: updating an already-visible node must never hide or move it.
func (m *DiagramMutator) ReplaceNode(id, data string) error {
	m.mu.Lock()
	node, ok := m.nodes[id]
	if !ok {
		m.mu.Unlock()
		return pkgerrors.NewNotFoundError("rendered node " + id)
	}
	node.data = data
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.surface.RenderDiagram(views, edges)
	return nil
}

// ApplyLayout moves nodes to their computed positions and advances them to
// the positioned phase. Unknown node IDs in the result are ignored.
func (m *DiagramMutator) ApplyLayout(positions []PositionedNode) {
	m.mu.Lock()
	for _, p := range positions {
		node, ok := m.nodes[p.ID]
		if !ok {
			continue
		}
		node.position = m.position(p.X, p.Y)
		node.finalPosition = nil
		node.advance(PhasePositioned)
	}
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.surface.RenderDiagram(views, edges)
}

// RevealPending flips positioned pending nodes to visible and centers the
// camera on the most recently added article node among them, or on the root
// on the first reveal. Nodes still waiting for a position stay pending.
func (m *DiagramMutator) RevealPending() {
	m.mu.Lock()
	var remaining []string
	centerTarget := ""
	for _, id := range m.pending {
		node, ok := m.nodes[id]
		if !ok {
			continue
		}
		if node.phase < PhasePositioned {
			remaining = append(remaining, id)
			continue
		}
		node.advance(PhaseVisible)
		if node.kind == KindArticle {
			centerTarget = id
		}
	}
	m.pending = remaining
	if centerTarget == "" && !m.centeredOnce {
		centerTarget = m.rootID
	}
	if centerTarget != "" {
		m.centeredOnce = true
	}
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.surface.RenderDiagram(views, edges)
	if centerTarget != "" {
		m.surface.CenterOn(centerTarget)
	}
}

// RevealAll makes every hidden node visible immediately. Recovery path for
// a stuck or skipped layout pass.
func (m *DiagramMutator) RevealAll() {
	m.mu.Lock()
	for _, node := range m.nodes {
		node.advance(PhaseVisible)
	}
	m.pending = nil
	views, edges := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("revealed all hidden nodes")
	m.surface.RenderDiagram(views, edges)
}

// SetMeasuredHeight records the pixel height the render surface measured
// for a node after painting it.
func (m *DiagramMutator) SetMeasuredHeight(id string, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if node, ok := m.nodes[id]; ok && height > 0 {
		node.measuredHeight = height
	}
}

// Heights returns the measured heights collected so far, keyed by node ID.
func (m *DiagramMutator) Heights() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64)
	for id, node := range m.nodes {
		if node.measuredHeight > 0 {
			out[id] = node.measuredHeight
		}
	}
	return out
}

// Snapshot returns the current rendered collections in insertion order.
func (m *DiagramMutator) Snapshot() ([]NodeView, []EdgeView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// PendingReveal returns the IDs of nodes staged but not yet revealed.
func (m *DiagramMutator) PendingReveal() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.pending))
	copy(out, m.pending)
	return out
}

func (m *DiagramMutator) snapshotLocked() ([]NodeView, []EdgeView) {
	views := make([]NodeView, 0, len(m.order))
	for _, id := range m.order {
		node := m.nodes[id]
		view := NodeView{
			ID:      node.id,
			Kind:    node.kind,
			Data:    node.data,
			X:       node.position.X(),
			Y:       node.position.Y(),
			Visible: node.Visible(),
		}
		if node.finalPosition != nil {
			tx, ty := node.finalPosition.X(), node.finalPosition.Y()
			view.TargetX, view.TargetY = &tx, &ty
		}
		views = append(views, view)
	}
	edges := make([]EdgeView, 0, len(m.edgeOrder))
	for _, id := range m.edgeOrder {
		edge := m.edges[id]
		edges = append(edges, EdgeView{ID: edge.id, SourceID: edge.sourceID, TargetID: edge.targetID})
	}
	return views, edges
}

func (m *DiagramMutator) position(x, y float64) valueobjects.Position {
	p, err := valueobjects.NewPosition(x, y)
	if err != nil {
		m.logger.Warn("invalid position, using origin", zap.Float64("x", x), zap.Float64("y", y))
		p, _ = valueobjects.NewPosition(m.cfg.OriginX, m.cfg.OriginY)
	}
	return p
}

// orderByDependency sorts a batch so every node follows its in-batch source.
// Input order is preserved among independent nodes. A dependency loop within
// the batch cannot occur for well-formed maps; if one does, the remaining
// nodes are appended in input order rather than dropped.
func orderByDependency(reqs []StageRequest) []StageRequest {
	inBatch := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		inBatch[r.ID] = true
	}

	placed := make(map[string]bool, len(reqs))
	ordered := make([]StageRequest, 0, len(reqs))
	remaining := reqs

	for len(remaining) > 0 {
		var next []StageRequest
		progressed := false
		for _, r := range remaining {
			if inBatch[r.SourceID] && !placed[r.SourceID] {
				next = append(next, r)
				continue
			}
			ordered = append(ordered, r)
			placed[r.ID] = true
			progressed = true
		}
		if !progressed {
			ordered = append(ordered, next...)
			break
		}
		remaining = next
	}
	return ordered
}
