package entities

import (
	"time"

	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
	pkgerrors "learnmap-backend/pkg/errors"
)

// ArticleStatus represents the generation state of an article
type ArticleStatus string

const (
	// StatusPending means the article is a placeholder awaiting generated content
	StatusPending ArticleStatus = "pending"
	// StatusFilled means the body has been generated
	StatusFilled ArticleStatus = "filled"
	// StatusEnriched means insights have been derived on top of the body
	StatusEnriched ArticleStatus = "enriched"
)

// Article is the main entity representing one unit of generated learning
// content. Articles are created empty the instant a question is asked and
// filled in asynchronously; they are never deleted in the normal flow.
type Article struct {
	id            valueobjects.ArticleID
	userID        string
	learningMapID string
	content       valueobjects.ArticleContent
	isRoot        bool
	status        ArticleStatus
	createdAt     time.Time
	updatedAt     time.Time
	version       int

	events []events.DomainEvent
}

// NewArticle creates a placeholder article with empty content
func NewArticle(userID, learningMapID string, isRoot bool) (*Article, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if learningMapID == "" {
		return nil, pkgerrors.NewValidationError("learningMapID cannot be empty")
	}

	now := time.Now()
	article := &Article{
		id:            valueobjects.NewArticleID(),
		userID:        userID,
		learningMapID: learningMapID,
		content:       valueobjects.EmptyArticleContent(),
		isRoot:        isRoot,
		status:        StatusPending,
		createdAt:     now,
		updatedAt:     now,
		version:       1,
		events:        []events.DomainEvent{},
	}

	article.addEvent(events.NewArticleCreated(article.id, learningMapID, userID, isRoot, now))

	return article, nil
}

// ReconstructArticle reconstructs an article from repository data with
// preserved timestamps; no events are raised.
func ReconstructArticle(
	id valueobjects.ArticleID,
	userID string,
	learningMapID string,
	content valueobjects.ArticleContent,
	isRoot bool,
	status ArticleStatus,
	createdAt, updatedAt time.Time,
	version int,
) (*Article, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if learningMapID == "" {
		return nil, pkgerrors.NewValidationError("learningMapID cannot be empty")
	}

	return &Article{
		id:            id,
		userID:        userID,
		learningMapID: learningMapID,
		content:       content,
		isRoot:        isRoot,
		status:        status,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		version:       version,
		events:        []events.DomainEvent{},
	}, nil
}

// ID returns the article's unique identifier
func (a *Article) ID() valueobjects.ArticleID {
	return a.id
}

// UserID returns the owner's ID
func (a *Article) UserID() string {
	return a.userID
}

// LearningMapID returns the ID of the map this article belongs to
func (a *Article) LearningMapID() string {
	return a.learningMapID
}

// Content returns the article's content
func (a *Article) Content() valueobjects.ArticleContent {
	return a.content
}

// IsRoot reports whether this is the map's root article
func (a *Article) IsRoot() bool {
	return a.isRoot
}

// Status returns the article's generation status
func (a *Article) Status() ArticleStatus {
	return a.status
}

// Version returns the article's version for optimistic locking
func (a *Article) Version() int {
	return a.version
}

// IsPending reports whether generated content has not yet arrived
func (a *Article) IsPending() bool {
	return a.content.IsEmpty()
}

// FillContent sets the generated body on a pending article. The generation
// stream is applied as one logical batch, so the body lands in a single call.
func (a *Article) FillContent(content valueobjects.ArticleContent) error {
	if content.IsEmpty() {
		return pkgerrors.NewValidationError("generated content cannot be empty")
	}

	if a.content.Equals(content) {
		return nil // redundant fill, nothing to do
	}

	a.content = content
	a.status = StatusFilled
	a.updatedAt = time.Now()
	a.version++

	a.addEvent(events.NewArticleContentFilled(a.id, a.learningMapID, content.WordCount(), a.updatedAt))

	return nil
}

// DeriveInsights attaches summary, takeaways and tooltips computed from the
// body. Runs independently of FillContent.
func (a *Article) DeriveInsights(summary string, takeaways []string, tooltips map[string]string) error {
	if a.content.IsEmpty() {
		return pkgerrors.NewValidationError("cannot derive insights before content is filled")
	}

	enriched, err := a.content.WithInsights(summary, takeaways, tooltips)
	if err != nil {
		return err
	}

	if a.content.Equals(enriched) {
		return nil
	}

	a.content = enriched
	a.status = StatusEnriched
	a.updatedAt = time.Now()
	a.version++

	a.addEvent(events.NewArticleInsightsDerived(
		a.id, a.learningMapID, len(enriched.Takeaways()), len(enriched.Tooltips()), a.updatedAt))

	return nil
}

// MarkDeleted records the administrative deletion of this article.
// Deletion is an escape hatch, not part of the normal append-only flow.
func (a *Article) MarkDeleted(byUserID string) {
	a.updatedAt = time.Now()
	a.addEvent(events.NewArticleDeleted(a.id, a.learningMapID, byUserID, a.updatedAt))
}

// CreatedAt returns when the article was created
func (a *Article) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt returns when the article was last updated
func (a *Article) UpdatedAt() time.Time {
	return a.updatedAt
}

// GetUncommittedEvents returns all uncommitted domain events
func (a *Article) GetUncommittedEvents() []events.DomainEvent {
	return a.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (a *Article) MarkEventsAsCommitted() {
	a.events = []events.DomainEvent{}
}

func (a *Article) addEvent(event events.DomainEvent) {
	a.events = append(a.events, event)
}
