package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"learnmap-backend/domain/config"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
	pkgerrors "learnmap-backend/pkg/errors"
)

// Question is the edge-like entity linking a parent article to the child
// article created to answer it. Each child article has exactly one incoming
// question, which is what keeps the learning map a tree.
type Question struct {
	id              valueobjects.QuestionID
	learningMapID   string
	parentArticleID valueobjects.ArticleID
	childArticleID  valueobjects.ArticleID
	text            string
	isImplicit      bool
	createdAt       time.Time

	events []events.DomainEvent
}

// NewQuestion creates a question linking parent to child
func NewQuestion(
	learningMapID string,
	parentArticleID, childArticleID valueobjects.ArticleID,
	text string,
	isImplicit bool,
) (*Question, error) {
	return NewQuestionWithConfig(learningMapID, parentArticleID, childArticleID, text, isImplicit, config.DefaultDomainConfig())
}

// NewQuestionWithConfig creates a question with explicit configuration
func NewQuestionWithConfig(
	learningMapID string,
	parentArticleID, childArticleID valueobjects.ArticleID,
	text string,
	isImplicit bool,
	cfg *config.DomainConfig,
) (*Question, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if learningMapID == "" {
		return nil, pkgerrors.NewValidationError("learningMapID cannot be empty")
	}
	if parentArticleID.IsZero() || childArticleID.IsZero() {
		return nil, pkgerrors.NewValidationError("question must link two articles")
	}
	if parentArticleID.Equals(childArticleID) {
		return nil, pkgerrors.NewValidationError("cannot link an article to itself")
	}

	text = strings.TrimSpace(text)
	if text == "" && !isImplicit {
		return nil, pkgerrors.NewValidationError("question text cannot be empty")
	}
	if utf8.RuneCountInString(text) > cfg.MaxQuestionLength {
		return nil, pkgerrors.NewValidationError("question text exceeds maximum length")
	}

	now := time.Now()
	question := &Question{
		id:              valueobjects.NewQuestionID(),
		learningMapID:   learningMapID,
		parentArticleID: parentArticleID,
		childArticleID:  childArticleID,
		text:            text,
		isImplicit:      isImplicit,
		createdAt:       now,
		events:          []events.DomainEvent{},
	}

	question.addEvent(events.NewQuestionAsked(
		question.id, learningMapID, parentArticleID, childArticleID, text, isImplicit, now))

	return question, nil
}

// ReconstructQuestion reconstructs a question from repository data
func ReconstructQuestion(
	id valueobjects.QuestionID,
	learningMapID string,
	parentArticleID, childArticleID valueobjects.ArticleID,
	text string,
	isImplicit bool,
	createdAt time.Time,
) (*Question, error) {
	if learningMapID == "" {
		return nil, pkgerrors.NewValidationError("learningMapID cannot be empty")
	}
	if parentArticleID.IsZero() || childArticleID.IsZero() {
		return nil, pkgerrors.NewValidationError("question must link two articles")
	}

	return &Question{
		id:              id,
		learningMapID:   learningMapID,
		parentArticleID: parentArticleID,
		childArticleID:  childArticleID,
		text:            text,
		isImplicit:      isImplicit,
		createdAt:       createdAt,
		events:          []events.DomainEvent{},
	}, nil
}

// ID returns the question's unique identifier
func (q *Question) ID() valueobjects.QuestionID {
	return q.id
}

// LearningMapID returns the ID of the map this question belongs to
func (q *Question) LearningMapID() string {
	return q.learningMapID
}

// ParentArticleID returns the source article
func (q *Question) ParentArticleID() valueobjects.ArticleID {
	return q.parentArticleID
}

// ChildArticleID returns the destination article
func (q *Question) ChildArticleID() valueobjects.ArticleID {
	return q.childArticleID
}

// Text returns the literal question text
func (q *Question) Text() string {
	return q.text
}

// IsImplicit reports whether the question was synthesized rather than asked
func (q *Question) IsImplicit() bool {
	return q.isImplicit
}

// CreatedAt returns when the question was asked
func (q *Question) CreatedAt() time.Time {
	return q.createdAt
}

// GetUncommittedEvents returns all uncommitted domain events
func (q *Question) GetUncommittedEvents() []events.DomainEvent {
	return q.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (q *Question) MarkEventsAsCommitted() {
	q.events = []events.DomainEvent{}
}

func (q *Question) addEvent(event events.DomainEvent) {
	q.events = append(q.events, event)
}
