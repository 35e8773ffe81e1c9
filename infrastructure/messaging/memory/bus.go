package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/events"
)

// EventBus is an in-process implementation of the EventBus interface. The
// long-running API server uses it so the diagram session layer can react to
// domain events without a round trip through EventBridge.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewEventBus creates a new in-process event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Publish sends a single event to all subscribed handlers
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]ports.EventHandler(nil), b.handlers[event.GetEventType()]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if !handler.CanHandle(event.GetEventType()) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			// A failing subscriber must not block the others
			b.logger.Warn("Event handler failed",
				zap.String("eventType", event.GetEventType()),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// PublishBatch sends multiple events in order
func (b *EventBus) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for an event type
func (b *EventBus) Subscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Unsubscribe removes a handler
func (b *EventBus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			b.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return nil
}
