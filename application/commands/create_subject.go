package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
)

// CreateSubjectCommand represents the command to create a new subject
type CreateSubjectCommand struct {
	UserID      string `json:"user_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// Validate validates the command
func (cmd CreateSubjectCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.Title == "" {
		return errors.New("title is required")
	}
	return nil
}

// CreateSubjectHandler handles the CreateSubjectCommand
type CreateSubjectHandler struct {
	subjectRepo ports.SubjectRepository
	eventBus    ports.EventPublisher
	logger      *zap.Logger
}

// NewCreateSubjectHandler creates a new handler instance
func NewCreateSubjectHandler(
	subjectRepo ports.SubjectRepository,
	eventBus ports.EventPublisher,
	logger *zap.Logger,
) *CreateSubjectHandler {
	return &CreateSubjectHandler{
		subjectRepo: subjectRepo,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// Handle executes the create subject command
func (h *CreateSubjectHandler) Handle(ctx context.Context, cmd CreateSubjectCommand) (*aggregates.Subject, error) {
	subject, err := aggregates.NewSubject(cmd.UserID, cmd.Title, cmd.Description)
	if err != nil {
		return nil, err
	}

	if err := h.subjectRepo.Save(ctx, subject); err != nil {
		return nil, err
	}

	if err := h.eventBus.PublishBatch(ctx, subject.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish subject events", zap.Error(err))
	}
	subject.MarkEventsAsCommitted()

	h.logger.Info("subject created",
		zap.String("subject_id", subject.ID().String()),
		zap.String("user_id", cmd.UserID),
	)
	return subject, nil
}
