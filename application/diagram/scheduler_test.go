package diagram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "learnmap-backend/pkg/errors"
)

// fakeEngine dispatches on the first node's ID so concurrent batches hit
// deterministic behavior regardless of goroutine scheduling.
type fakeEngine struct {
	fn    func(ctx context.Context, key string) (*LayoutOutput, error)
	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Compute(ctx context.Context, nodes []LayoutNode, edges []LayoutEdge, direction Direction) (*LayoutOutput, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	key := ""
	if len(nodes) > 0 {
		key = nodes[0].ID
	}
	return e.fn(ctx, key)
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func batch(id string) []LayoutNode {
	return []LayoutNode{{ID: id}}
}

func TestScheduler_AppliesCompletedLayout(t *testing.T) {
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		return &LayoutOutput{Nodes: []PositionedNode{{ID: key, X: 100, Y: 100}}}, nil
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	applied := make(chan *LayoutOutput, 1)
	s.Schedule(context.Background(), batch("a1"), nil, DirectionTopToBottom,
		func(out *LayoutOutput) { applied <- out }, nil)

	select {
	case out := <-applied:
		require.Len(t, out.Nodes, 1)
		assert.Equal(t, "a1", out.Nodes[0].ID)
	case <-time.After(time.Second):
		t.Fatal("layout result never applied")
	}
}

func TestScheduler_SupersededResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		if key == "stale" {
			<-release
		}
		return &LayoutOutput{Nodes: []PositionedNode{{ID: key}}}, nil
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	applied := make(chan string, 2)
	apply := func(out *LayoutOutput) { applied <- out.Nodes[0].ID }

	s.Schedule(context.Background(), batch("stale"), nil, DirectionTopToBottom, apply, nil)
	s.Schedule(context.Background(), batch("fresh"), nil, DirectionTopToBottom, apply, nil)

	select {
	case id := <-applied:
		assert.Equal(t, "fresh", id)
	case <-time.After(time.Second):
		t.Fatal("fresh layout never applied")
	}

	// Let the superseded computation finish after the newer one landed;
	// its result must be discarded, not applied late.
	close(release)
	select {
	case id := <-applied:
		t.Fatalf("superseded result %q was applied", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_SupersedeCancelsInFlightContext(t *testing.T) {
	canceled := make(chan struct{})
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		if key == "stuck" {
			<-ctx.Done()
			close(canceled)
			return nil, ctx.Err()
		}
		return &LayoutOutput{}, nil
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	s.Schedule(context.Background(), batch("stuck"), nil, DirectionTopToBottom, func(*LayoutOutput) {}, nil)
	s.Schedule(context.Background(), batch("next"), nil, DirectionTopToBottom, func(*LayoutOutput) {}, nil)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("first batch context was never canceled")
	}
}

func TestScheduler_FailureReportsLayoutError(t *testing.T) {
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		return nil, errors.New("dot crashed")
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	failed := make(chan error, 1)
	s.Schedule(context.Background(), batch("a1"), nil, DirectionTopToBottom,
		func(*LayoutOutput) { t.Error("apply must not run on failure") },
		func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.True(t, pkgerrors.IsLayout(err))
	case <-time.After(time.Second):
		t.Fatal("failure was never reported")
	}
}

func TestScheduler_BatchScheduledDuringApplyLandsAfterIt(t *testing.T) {
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		return &LayoutOutput{Nodes: []PositionedNode{{ID: key}}}, nil
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	var mu sync.Mutex
	var order []string
	record := func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}

	firstApplying := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan struct{}, 2)

	s.Schedule(context.Background(), batch("old"), nil, DirectionTopToBottom,
		func(out *LayoutOutput) {
			close(firstApplying)
			<-releaseFirst
			record(out.Nodes[0].ID)
			done <- struct{}{}
		}, nil)
	<-firstApplying

	// Scheduled mid-apply: this batch must wait the apply out, then win.
	go s.Schedule(context.Background(), batch("new"), nil, DirectionTopToBottom,
		func(out *LayoutOutput) {
			record(out.Nodes[0].ID)
			done <- struct{}{}
		}, nil)
	time.Sleep(20 * time.Millisecond)
	close(releaseFirst)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("layout apply never completed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"old", "new"}, order,
		"the newer batch must be the final applied state")
}

func TestScheduler_GenerationAdvancesPerBatch(t *testing.T) {
	engine := &fakeEngine{fn: func(ctx context.Context, key string) (*LayoutOutput, error) {
		return &LayoutOutput{}, nil
	}}
	s := NewLayoutScheduler(engine, zap.NewNop())

	s.Schedule(context.Background(), batch("a"), nil, DirectionTopToBottom, func(*LayoutOutput) {}, nil)
	s.Schedule(context.Background(), batch("b"), nil, DirectionTopToBottom, func(*LayoutOutput) {}, nil)

	assert.Equal(t, uint64(2), s.Generation())
}
