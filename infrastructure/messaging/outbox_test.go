package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnmap-backend/domain/events"
)

// flakyBus fails the first failFor publish attempts.
type flakyBus struct {
	failFor   int
	attempts  int
	delivered []events.DomainEvent
}

func (b *flakyBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

func (b *flakyBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.attempts++
	if b.attempts <= b.failFor {
		return errors.New("bus unavailable")
	}
	b.delivered = append(b.delivered, batch...)
	return nil
}

// recordingStore captures SaveEvents calls; the query methods are unused here.
type recordingStore struct {
	saved   []events.DomainEvent
	saveErr error
}

func (s *recordingStore) SaveEvents(ctx context.Context, batch []events.DomainEvent) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, batch...)
	return nil
}

func (s *recordingStore) GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error) {
	return nil, nil
}

func (s *recordingStore) GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error) {
	return nil, nil
}

func (s *recordingStore) DeleteEvents(ctx context.Context, aggregateID string) error {
	return nil
}

func someEvent() events.DomainEvent {
	return events.NewSubjectCreated("subj1", "user123", "Databases", time.Now())
}

func TestOutboxPublisher_DeliversThroughBus(t *testing.T) {
	bus := &flakyBus{}
	store := &recordingStore{}
	p := NewOutboxPublisher(bus, store, zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), someEvent()))

	assert.Len(t, bus.delivered, 1)
	assert.Empty(t, store.saved, "a delivered event must not hit the outbox")
}

func TestOutboxPublisher_ParksBatchWhenBusFails(t *testing.T) {
	bus := &flakyBus{failFor: 1}
	store := &recordingStore{}
	p := NewOutboxPublisher(bus, store, zap.NewNop())

	batch := []events.DomainEvent{someEvent(), someEvent()}
	require.NoError(t, p.PublishBatch(context.Background(), batch))

	assert.Empty(t, bus.delivered)
	require.Len(t, store.saved, 2, "the failed batch must be parked for the relay")
	assert.Equal(t, "subject.created", store.saved[0].GetEventType())
}

func TestOutboxPublisher_ErrorsOnlyWhenOutboxAlsoFails(t *testing.T) {
	bus := &flakyBus{failFor: 1}
	store := &recordingStore{saveErr: errors.New("table missing")}
	p := NewOutboxPublisher(bus, store, zap.NewNop())

	err := p.Publish(context.Background(), someEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox save failed")
}

func TestOutboxPublisher_EmptyBatchIsNoOp(t *testing.T) {
	bus := &flakyBus{failFor: 1}
	p := NewOutboxPublisher(bus, &recordingStore{}, zap.NewNop())

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Zero(t, bus.attempts)
}
