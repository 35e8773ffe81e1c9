package dynamodb

import (
	"context"
	"fmt"
	"time"

	"learnmap-backend/application/ports"

	"go.uber.org/zap"
)

// OutboxProcessor relays unpublished map and article events from the outbox
// to the event bus. Events only reach downstream consumers (snapshot
// invalidation, content generation triggers) after the structural write that
// produced them has committed.
type OutboxProcessor struct {
	eventStore     *DynamoDBEventStore
	eventPublisher ports.EventPublisher
	logger         *zap.Logger

	batchSize          int32
	processingInterval time.Duration
	maxRetries         int

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutboxProcessor creates a relay with the default batch and retry policy
func NewOutboxProcessor(
	eventStore *DynamoDBEventStore,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		eventStore:         eventStore,
		eventPublisher:     eventPublisher,
		logger:             logger,
		batchSize:          50,
		processingInterval: 5 * time.Second,
		maxRetries:         3,
		stopChan:           make(chan struct{}),
		stoppedChan:        make(chan struct{}),
	}
}

// Start begins relaying in a background goroutine
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int32("batchSize", op.batchSize),
		zap.Duration("interval", op.processingInterval),
	)

	go op.processLoop(ctx)
}

// Stop blocks until the relay loop has drained and exited
func (op *OutboxProcessor) Stop() {
	op.logger.Info("Stopping outbox processor")
	close(op.stopChan)
	<-op.stoppedChan
	op.logger.Info("Outbox processor stopped")
}

func (op *OutboxProcessor) processLoop(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(op.processingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			op.logger.Info("Context cancelled, stopping outbox processor")
			return
		case <-op.stopChan:
			return
		case <-ticker.C:
			if err := op.processBatch(ctx); err != nil {
				op.logger.Error("Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// processBatch publishes one batch of pending events. A failing event does
// not block the rest of the batch.
func (op *OutboxProcessor) processBatch(ctx context.Context) error {
	pendingEvents, err := op.eventStore.GetPendingEvents(ctx, op.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(pendingEvents) == 0 {
		return nil
	}

	successCount := 0
	failureCount := 0

	for _, eventRecord := range pendingEvents {
		if err := op.processEvent(ctx, eventRecord); err != nil {
			op.logger.Error("Failed to process event",
				zap.String("eventID", eventRecord.EventID),
				zap.String("eventType", eventRecord.EventType),
				zap.Error(err),
			)
			failureCount++
		} else {
			successCount++
		}
	}

	op.logger.Debug("Completed outbox batch",
		zap.Int("successCount", successCount),
		zap.Int("failureCount", failureCount),
	)

	return nil
}

func (op *OutboxProcessor) processEvent(ctx context.Context, eventRecord *EventRecord) error {
	domainEvent, err := op.eventStore.recordToEvent(*eventRecord)
	if err != nil {
		// Malformed records will never deserialize; count the attempt so
		// they age out at maxRetries instead of looping forever.
		return op.markEventFailed(ctx, eventRecord, fmt.Sprintf("failed to convert to domain event: %v", err))
	}

	if err := op.eventPublisher.Publish(ctx, domainEvent); err != nil {
		return op.markEventFailed(ctx, eventRecord, fmt.Sprintf("publish failed: %v", err))
	}

	return op.markEventPublished(ctx, eventRecord)
}

func (op *OutboxProcessor) markEventPublished(ctx context.Context, eventRecord *EventRecord) error {
	if err := op.eventStore.MarkEventAsPublished(ctx, eventRecord.PK, eventRecord.SK); err != nil {
		op.logger.Error("Failed to mark event as published",
			zap.String("eventID", eventRecord.EventID),
			zap.Error(err),
		)
		return err
	}

	op.logger.Debug("Event published",
		zap.String("eventID", eventRecord.EventID),
		zap.String("eventType", eventRecord.EventType),
	)

	return nil
}

func (op *OutboxProcessor) markEventFailed(ctx context.Context, eventRecord *EventRecord, errorMsg string) error {
	newAttempts := eventRecord.PublishAttempts + 1

	if err := op.eventStore.MarkEventAsFailed(ctx, eventRecord.PK, eventRecord.SK, errorMsg, newAttempts); err != nil {
		op.logger.Error("Failed to mark event as failed",
			zap.String("eventID", eventRecord.EventID),
			zap.Error(err),
		)
		return err
	}

	if newAttempts >= op.maxRetries {
		op.logger.Warn("Event permanently failed after max retries",
			zap.String("eventID", eventRecord.EventID),
			zap.String("eventType", eventRecord.EventType),
			zap.Int("attempts", newAttempts),
			zap.String("error", errorMsg),
		)
	} else {
		op.logger.Debug("Event marked for retry",
			zap.String("eventID", eventRecord.EventID),
			zap.String("eventType", eventRecord.EventType),
			zap.Int("attempts", newAttempts),
		)
	}

	return fmt.Errorf("event processing failed: %s", errorMsg)
}
