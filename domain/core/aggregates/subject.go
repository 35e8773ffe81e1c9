package aggregates

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnmap-backend/domain/events"
)

// SubjectID represents a unique subject identifier
type SubjectID string

// NewSubjectID creates a new random SubjectID
func NewSubjectID() SubjectID {
	return SubjectID(uuid.New().String())
}

// String returns the string representation
func (id SubjectID) String() string {
	return string(id)
}

// Subject groups the learning maps a user has created for one topic of study
type Subject struct {
	id          SubjectID
	userID      string
	title       string
	description string
	createdAt   time.Time
	updatedAt   time.Time
	events      []events.DomainEvent
}

// NewSubject creates a new subject
func NewSubject(userID, title, description string) (*Subject, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("subject title required")
	}

	now := time.Now()
	s := &Subject{
		id:          NewSubjectID(),
		userID:      userID,
		title:       title,
		description: description,
		createdAt:   now,
		updatedAt:   now,
		events:      []events.DomainEvent{},
	}

	s.events = append(s.events, events.NewSubjectCreated(s.id.String(), userID, title, now))

	return s, nil
}

// ReconstructSubject recreates a subject from stored data
func ReconstructSubject(id, userID, title, description string, createdAt, updatedAt time.Time) (*Subject, error) {
	if id == "" || userID == "" || title == "" {
		return nil, errors.New("required fields missing for subject reconstruction")
	}

	return &Subject{
		id:          SubjectID(id),
		userID:      userID,
		title:       title,
		description: description,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		events:      []events.DomainEvent{},
	}, nil
}

// ID returns the subject's unique identifier
func (s *Subject) ID() SubjectID {
	return s.id
}

// UserID returns the owner's ID
func (s *Subject) UserID() string {
	return s.userID
}

// Title returns the subject's title
func (s *Subject) Title() string {
	return s.title
}

// Description returns the subject's description
func (s *Subject) Description() string {
	return s.description
}

// CreatedAt returns when the subject was created
func (s *Subject) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the subject was last updated
func (s *Subject) UpdatedAt() time.Time {
	return s.updatedAt
}

// Rename updates the subject's title
func (s *Subject) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("subject title required")
	}
	s.title = title
	s.updatedAt = time.Now()
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (s *Subject) GetUncommittedEvents() []events.DomainEvent {
	return s.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (s *Subject) MarkEventsAsCommitted() {
	s.events = []events.DomainEvent{}
}
