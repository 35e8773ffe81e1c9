package diagram

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/tree"
	pkgerrors "learnmap-backend/pkg/errors"
)

// DesiredNode is one node the rendered collection should contain, derived
// purely from the canonical map.
type DesiredNode struct {
	ID       string
	Kind     NodeKind
	Data     string
	SourceID string
}

// DesiredShape is the full rendered shape a canonical map implies.
type DesiredShape struct {
	Nodes []DesiredNode
	Edges []LayoutEdge
}

// GraphReconciler brings the rendered collection in line with the canonical
// map. It runs on every canonical change, including redundant ones: a
// zero-diff invocation is a no-op. New nodes are staged as one dependent
// chain and revealed once their layout pass completes; content-only changes
// are replaced in place with no layout pass.
type GraphReconciler struct {
	mutator   *DiagramMutator
	scheduler *LayoutScheduler
	logger    *zap.Logger
}

// NewGraphReconciler wires a reconciler to its mutator and scheduler.
func NewGraphReconciler(mutator *DiagramMutator, scheduler *LayoutScheduler, logger *zap.Logger) *GraphReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphReconciler{mutator: mutator, scheduler: scheduler, logger: logger}
}

// Reconcile diffs the canonical map against the rendered collection and
// applies the minimal set of staging and replacement operations. Rapid
// successive calls collapse naturally: each call diffs against the latest
// rendered state, and the scheduler supersedes any in-flight layout pass.
// A structurally invalid map (no unique root, cycle, multi-parent) fails
// hard with no partial staging.
func (r *GraphReconciler) Reconcile(ctx context.Context, lm *aggregates.LearningMap) error {
	desired, err := ComputeDesiredShape(lm)
	if err != nil {
		return err
	}

	rendered, _ := r.mutator.Snapshot()
	renderedByID := make(map[string]NodeView, len(rendered))
	for _, v := range rendered {
		renderedByID[v.ID] = v
	}

	var fresh []StageRequest
	var changed []DesiredNode
	for _, d := range desired.Nodes {
		existing, ok := renderedByID[d.ID]
		if !ok {
			fresh = append(fresh, StageRequest{ID: d.ID, Kind: d.Kind, Data: d.Data, SourceID: d.SourceID})
			continue
		}
		if existing.Data != d.Data {
			changed = append(changed, d)
		}
	}

	pending := r.mutator.PendingReveal()
	if len(fresh) == 0 && len(changed) == 0 && len(pending) == 0 {
		return nil
	}

	for _, d := range changed {
		if err := r.mutator.ReplaceNode(d.ID, d.Data); err != nil {
			r.logger.Warn("replace of rendered node failed",
				zap.String("node_id", d.ID),
				zap.Error(err),
			)
		}
	}

	// A non-empty pending set with no fresh nodes means an earlier layout
	// pass failed or was superseded; rerun layout so those nodes get
	// revealed.
	if len(fresh) > 0 || len(pending) > 0 {
		if len(fresh) > 0 {
			r.mutator.StageDependentChain(fresh)
		}
		r.scheduleLayout(ctx, desired)
	}
	return nil
}

// scheduleLayout runs the external layout over the full desired shape and
// reveals pending nodes when it lands. Failure leaves them staged for the
// next invocation.
func (r *GraphReconciler) scheduleLayout(ctx context.Context, desired *DesiredShape) {
	heights := r.mutator.Heights()
	nodes := make([]LayoutNode, 0, len(desired.Nodes))
	for _, d := range desired.Nodes {
		nodes = append(nodes, LayoutNode{ID: d.ID, Height: heights[d.ID]})
	}

	r.scheduler.Schedule(ctx, nodes, desired.Edges, DirectionTopToBottom,
		func(out *LayoutOutput) {
			r.mutator.ApplyLayout(out.Nodes)
			r.mutator.RevealPending()
		},
		func(err error) {
			r.logger.Warn("layout pass failed, staged nodes kept for retry", zap.Error(err))
		},
	)
}

// ComputeDesiredShape converts a canonical map to the rendered shape it
// should have. Pure: depends only on the map, never on render state. The
// node order is deterministic: root article first, then each question
// followed by the article it introduced, in question creation order.
func ComputeDesiredShape(lm *aggregates.LearningMap) (*DesiredShape, error) {
	articles := lm.Articles()
	questions := lm.Questions()
	if len(articles) == 0 {
		return &DesiredShape{}, nil
	}

	if root := tree.Build(articles, questions); root == nil {
		return nil, pkgerrors.NewStructuralError("learning map does not form a rooted tree")
	}

	shape := &DesiredShape{}
	covered := make(map[string]bool, len(articles))

	rootArticle := lm.RootArticle()
	shape.Nodes = append(shape.Nodes, DesiredNode{
		ID:   rootArticle.ID().String(),
		Kind: KindArticle,
		Data: serializeArticle(rootArticle),
	})
	covered[rootArticle.ID().String()] = true

	for _, q := range questions {
		parentID := q.ParentArticleID().String()
		questionID := q.ID().String()
		childID := q.ChildArticleID().String()

		// A question whose parent never made it into the map would emit an
		// edge with no source node, which the layout engine rejects on every
		// pass. Skip it the way the tree builder does; the child still shows
		// up below as an article without an incoming question.
		if !lm.HasArticle(q.ParentArticleID()) {
			continue
		}

		shape.Nodes = append(shape.Nodes, DesiredNode{
			ID:       questionID,
			Kind:     KindQuestion,
			Data:     serializeQuestion(q),
			SourceID: parentID,
		})
		shape.Edges = append(shape.Edges, LayoutEdge{SourceID: parentID, TargetID: questionID})

		child, err := lm.GetArticle(q.ChildArticleID())
		if err != nil {
			continue
		}
		shape.Nodes = append(shape.Nodes, DesiredNode{
			ID:       childID,
			Kind:     KindArticle,
			Data:     serializeArticle(child),
			SourceID: questionID,
		})
		shape.Edges = append(shape.Edges, LayoutEdge{SourceID: questionID, TargetID: childID})
		covered[childID] = true
	}

	// Articles not yet covered have no incoming question. The aggregate's
	// invariants forbid them, but a shape computation must not drop data.
	var orphans []*entities.Article
	for _, a := range articles {
		if !covered[a.ID().String()] {
			orphans = append(orphans, a)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID().String() < orphans[j].ID().String() })
	for _, a := range orphans {
		shape.Nodes = append(shape.Nodes, DesiredNode{
			ID:   a.ID().String(),
			Kind: KindArticle,
			Data: serializeArticle(a),
		})
	}

	return shape, nil
}

func serializeArticle(a *entities.Article) string {
	payload := struct {
		Content   string            `json:"content"`
		Summary   string            `json:"summary,omitempty"`
		Takeaways []string          `json:"takeaways,omitempty"`
		Tooltips  map[string]string `json:"tooltips,omitempty"`
		IsRoot    bool              `json:"is_root"`
		Status    string            `json:"status"`
	}{
		Content:   a.Content().Body(),
		Summary:   a.Content().Summary(),
		Takeaways: a.Content().Takeaways(),
		Tooltips:  a.Content().Tooltips(),
		IsRoot:    a.IsRoot(),
		Status:    string(a.Status()),
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func serializeQuestion(q *entities.Question) string {
	payload := struct {
		Text       string `json:"text"`
		IsImplicit bool   `json:"is_implicit"`
	}{
		Text:       q.Text(),
		IsImplicit: q.IsImplicit(),
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
