package diagram

import (
	"context"
	"sync"

	"go.uber.org/zap"

	pkgerrors "learnmap-backend/pkg/errors"
)

// LayoutScheduler serializes layout computations for one diagram. At most
// one computation is in flight; scheduling a new one supersedes the previous
// batch. A superseded result is discarded when it arrives, checked against
// the current generation rather than relying on write order, so a stale
// result can never overwrite a newer one. Each batch carries its own
// cancellation context, so a computation that never returns cannot block
// later batches.
type LayoutScheduler struct {
	engine LayoutEngine
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewLayoutScheduler creates a scheduler over one layout engine.
func NewLayoutScheduler(engine LayoutEngine, logger *zap.Logger) *LayoutScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayoutScheduler{engine: engine, logger: logger}
}

// Schedule starts an asynchronous layout pass and invokes apply with the
// positioned nodes once it completes, unless a newer pass was scheduled in
// the meantime. apply runs under the scheduler's lock and must not call back
// into Schedule. On engine failure apply is never called: staged nodes keep
// their pre-layout positions and stay pending, and the error is reported
// through onError (which may be nil).
func (s *LayoutScheduler) Schedule(
	ctx context.Context,
	nodes []LayoutNode,
	edges []LayoutEdge,
	direction Direction,
	apply func(*LayoutOutput),
	onError func(error),
) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	batchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()

		out, err := s.engine.Compute(batchCtx, nodes, edges, direction)

		// The generation check and the apply share one critical section: a
		// batch scheduled while this result is being applied bumps the
		// generation only afterwards, so a stale result can never land on
		// top of a newer one.
		s.mu.Lock()
		current := s.generation == gen
		if current && err == nil {
			apply(out)
		}
		s.mu.Unlock()

		if !current {
			s.logger.Debug("discarding superseded layout result",
				zap.Uint64("generation", gen),
			)
			return
		}
		if err != nil {
			s.logger.Warn("layout computation failed, nodes stay staged",
				zap.Uint64("generation", gen),
				zap.Error(err),
			)
			if onError != nil {
				onError(pkgerrors.NewLayoutError("layout computation failed", err))
			}
		}
	}()
}

// Generation returns the current layout generation. Useful in tests and
// diagnostics.
func (s *LayoutScheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}
