// Package messaging wires domain events to their transports. Direct
// delivery goes through the configured event bus; events the bus refuses
// are parked in the durable outbox, and the outbox processor relays them
// until they land.
package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/events"
)

// OutboxPublisher is the EventPublisher handed to command handlers and
// sessions. A publish that the bus rejects is saved to the outbox as pending
// instead of being dropped, so a bus outage delays delivery rather than
// losing it. The outbox processor must publish through the raw bus, not
// through this type, or a second outage would re-park the same events.
type OutboxPublisher struct {
	bus    ports.EventPublisher
	outbox ports.EventStore
	logger *zap.Logger
}

// NewOutboxPublisher wraps a bus with outbox fallback.
func NewOutboxPublisher(bus ports.EventPublisher, outbox ports.EventStore, logger *zap.Logger) *OutboxPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxPublisher{bus: bus, outbox: outbox, logger: logger}
}

// Publish delivers one event, parking it in the outbox on failure.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch delivers a batch, parking the whole batch on failure. An
// error is returned only when both the bus and the outbox refuse the events.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	if len(batch) == 0 {
		return nil
	}

	err := p.bus.PublishBatch(ctx, batch)
	if err == nil {
		return nil
	}

	p.logger.Warn("event publish failed, parking batch in outbox",
		zap.Int("count", len(batch)),
		zap.Error(err),
	)
	if saveErr := p.outbox.SaveEvents(ctx, batch); saveErr != nil {
		return fmt.Errorf("publish failed (%v) and outbox save failed: %w", err, saveErr)
	}
	return nil
}
