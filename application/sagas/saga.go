package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SagaStep represents a single step in a saga
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// SagaState represents the current state of a saga execution
type SagaState string

const (
	SagaStatePending      SagaState = "PENDING"
	SagaStateRunning      SagaState = "RUNNING"
	SagaStateCompleted    SagaState = "COMPLETED"
	SagaStateFailed       SagaState = "FAILED"
	SagaStateCompensating SagaState = "COMPENSATING"
	SagaStateCompensated  SagaState = "COMPENSATED"
)

// Saga runs a sequence of steps, each step feeding its result to the next.
// When a step exhausts its retries, completed steps are compensated in
// reverse order. Insight derivation uses this to avoid persisting partial
// results when the generation call fails mid-flow.
type Saga struct {
	id            string
	name          string
	steps         []SagaStep
	compensations []func(ctx context.Context) error
	state         SagaState
	currentStep   int
	logger        *zap.Logger
	metadata      map[string]interface{}
}

// NewSaga creates a new saga instance
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:       uuid.NewString(),
		name:     name,
		state:    SagaStatePending,
		logger:   logger,
		metadata: make(map[string]interface{}),
	}
}

// AddStep adds a step to the saga
func (s *Saga) AddStep(step SagaStep) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// SetMetadata attaches diagnostic context that is logged with failures
func (s *Saga) SetMetadata(key string, value interface{}) *Saga {
	s.metadata[key] = value
	return s
}

// Execute runs the saga
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	s.state = SagaStateRunning
	s.logger.Debug("Starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	var data interface{} = initialData
	completedSteps := 0

	for i, step := range s.steps {
		s.currentStep = i

		result, err := s.executeStepWithRetry(ctx, step, data)
		if err != nil {
			s.state = SagaStateFailed
			s.logger.Error("Saga step failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.String("step_name", step.Name),
				zap.Any("metadata", s.metadata),
				zap.Error(err),
			)

			if compensateErr := s.compensate(ctx, completedSteps); compensateErr != nil {
				return nil, fmt.Errorf("saga %s failed at step %s and compensation failed: %w", s.name, step.Name, err)
			}

			s.state = SagaStateCompensated
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result
		completedSteps = i + 1

		if step.Compensate != nil {
			stepData := data
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return step.Compensate(ctx, stepData)
			})
		}
	}

	s.state = SagaStateCompleted
	s.logger.Debug("Saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("completed_steps", completedSteps),
	)

	return data, nil
}

func (s *Saga) executeStepWithRetry(ctx context.Context, step SagaStep, data interface{}) (interface{}, error) {
	maxRetries := step.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}

	retryDelay := step.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("step %s aborted: %w", step.Name, ctx.Err())
			case <-time.After(retryDelay):
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}

		lastErr = err
		s.logger.Warn("Saga step attempt failed",
			zap.String("saga_id", s.id),
			zap.String("step_name", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("step %s failed after %d attempts: %w", step.Name, maxRetries, lastErr)
}

// compensate runs registered compensations in reverse order. A failed
// compensation is logged and the remaining ones still run.
func (s *Saga) compensate(ctx context.Context, steps int) error {
	s.state = SagaStateCompensating
	s.logger.Info("Compensating saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("steps_to_compensate", steps),
	)

	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			s.logger.Error("Compensation failed",
				zap.String("saga_id", s.id),
				zap.Int("step_number", i+1),
				zap.Error(err),
			)
		}
	}

	return nil
}

// GetState returns the current state of the saga
func (s *Saga) GetState() SagaState {
	return s.state
}

// GetID returns the saga ID
func (s *Saga) GetID() string {
	return s.id
}

// SagaBuilder provides a fluent interface for building sagas
type SagaBuilder struct {
	saga *Saga
}

// NewSagaBuilder creates a new saga builder
func NewSagaBuilder(name string, logger *zap.Logger) *SagaBuilder {
	return &SagaBuilder{
		saga: NewSaga(name, logger),
	}
}

// WithMetadata adds metadata to the saga
func (b *SagaBuilder) WithMetadata(key string, value interface{}) *SagaBuilder {
	b.saga.SetMetadata(key, value)
	return b
}

// Build returns the constructed saga
func (b *SagaBuilder) Build() *Saga {
	return b.saga
}
