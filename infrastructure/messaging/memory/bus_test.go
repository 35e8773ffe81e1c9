package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
)

type recordingHandler struct {
	types    map[string]bool
	received []events.DomainEvent
	err      error
}

func (h *recordingHandler) Handle(ctx context.Context, event events.DomainEvent) error {
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	return h.types[eventType]
}

func questionAsked(t *testing.T, mapID string) events.QuestionAsked {
	t.Helper()
	return events.NewQuestionAsked(
		valueobjects.NewQuestionID(), mapID,
		valueobjects.NewArticleID(), valueobjects.NewArticleID(),
		"Why?", false, time.Now(),
	)
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{types: map[string]bool{"question.asked": true}}
	require.NoError(t, bus.Subscribe("question.asked", handler))

	event := questionAsked(t, "map-1")
	require.NoError(t, bus.Publish(context.Background(), event))

	require.Len(t, handler.received, 1)
	assert.Equal(t, event.GetAggregateID(), handler.received[0].GetAggregateID())
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{types: map[string]bool{"article.created": true}}
	require.NoError(t, bus.Subscribe("article.created", handler))

	require.NoError(t, bus.Publish(context.Background(), questionAsked(t, "map-1")))

	assert.Empty(t, handler.received)
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	failing := &recordingHandler{types: map[string]bool{"question.asked": true}, err: errors.New("boom")}
	healthy := &recordingHandler{types: map[string]bool{"question.asked": true}}
	require.NoError(t, bus.Subscribe("question.asked", failing))
	require.NoError(t, bus.Subscribe("question.asked", healthy))

	require.NoError(t, bus.Publish(context.Background(), questionAsked(t, "map-1")))

	assert.Len(t, failing.received, 1)
	assert.Len(t, healthy.received, 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{types: map[string]bool{"question.asked": true}}
	require.NoError(t, bus.Subscribe("question.asked", handler))
	require.NoError(t, bus.Unsubscribe("question.asked", handler))

	require.NoError(t, bus.Publish(context.Background(), questionAsked(t, "map-1")))

	assert.Empty(t, handler.received)
}

func TestPublishBatchKeepsOrder(t *testing.T) {
	bus := NewEventBus(zaptest.NewLogger(t))
	handler := &recordingHandler{types: map[string]bool{"question.asked": true}}
	require.NoError(t, bus.Subscribe("question.asked", handler))

	first := questionAsked(t, "map-1")
	second := questionAsked(t, "map-2")
	require.NoError(t, bus.PublishBatch(context.Background(), []events.DomainEvent{first, second}))

	require.Len(t, handler.received, 2)
	assert.Equal(t, first.GetAggregateID(), handler.received[0].GetAggregateID())
	assert.Equal(t, second.GetAggregateID(), handler.received[1].GetAggregateID())
}
