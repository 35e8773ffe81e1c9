package ports

import (
	"context"
	"time"

	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
)

// ArticleRepository defines the interface for article persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ArticleRepository interface {
	// Save persists an article (create or update)
	Save(ctx context.Context, article *entities.Article) error

	// GetByID retrieves an article by its ID
	GetByID(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error)

	// ListByMap retrieves all articles belonging to a learning map
	ListByMap(ctx context.Context, learningMapID string) ([]*entities.Article, error)

	// UpdateContent persists a partial content update (body, summary,
	// takeaways, tooltips) without touching structural fields
	UpdateContent(ctx context.Context, article *entities.Article) error

	// Delete removes an article
	Delete(ctx context.Context, id valueobjects.ArticleID) error
}

// QuestionRepository defines the interface for question persistence
type QuestionRepository interface {
	// Save persists a question
	Save(ctx context.Context, question *entities.Question) error

	// GetByID retrieves a question by its ID
	GetByID(ctx context.Context, id valueobjects.QuestionID) (*entities.Question, error)

	// ListByMap retrieves all questions for a learning map in creation order
	ListByMap(ctx context.Context, learningMapID string) ([]*entities.Question, error)

	// Delete removes a question
	Delete(ctx context.Context, id valueobjects.QuestionID) error
}

// LearningMapRepository defines the interface for learning map persistence
type LearningMapRepository interface {
	// Save persists a learning map's own record (not its articles/questions)
	Save(ctx context.Context, lm *aggregates.LearningMap) error

	// GetByID retrieves a fully hydrated learning map, articles and
	// questions attached in creation order
	GetByID(ctx context.Context, id aggregates.LearningMapID) (*aggregates.LearningMap, error)

	// ListBySubject retrieves all learning maps for a subject
	ListBySubject(ctx context.Context, subjectID string) ([]*aggregates.LearningMap, error)

	// ListByUser retrieves all learning maps owned by a user
	ListByUser(ctx context.Context, userID string) ([]*aggregates.LearningMap, error)

	// CreateArticleFromQuestion persists an empty child article plus its
	// linking question as one transaction. Both rows land or neither does;
	// the unique-child constraint is enforced here, not just in memory.
	CreateArticleFromQuestion(ctx context.Context, lm *aggregates.LearningMap, article *entities.Article, question *entities.Question) error

	// Delete removes a learning map together with its articles and questions
	Delete(ctx context.Context, id aggregates.LearningMapID) error
}

// SubjectRepository defines the interface for subject persistence
type SubjectRepository interface {
	// Save persists a subject (create or update)
	Save(ctx context.Context, subject *aggregates.Subject) error

	// GetByID retrieves a subject by its ID
	GetByID(ctx context.Context, id string) (*aggregates.Subject, error)

	// ListByUser retrieves all subjects owned by a user
	ListByUser(ctx context.Context, userID string) ([]*aggregates.Subject, error)

	// Delete removes a subject
	Delete(ctx context.Context, id string) error
}

// LayoutSnapshot is the persisted layout of one learning map: node
// positions, edges, and the heights the client measured, so reopening a map
// does not need a fresh layout pass.
type LayoutSnapshot struct {
	LearningMapID string             `json:"learning_map_id"`
	Nodes         []SnapshotNode     `json:"nodes"`
	Edges         []SnapshotEdge     `json:"edges"`
	NodeHeights   map[string]float64 `json:"node_heights"`
	SavedAt       time.Time          `json:"saved_at"`
}

// SnapshotNode is one persisted node position
type SnapshotNode struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}

// SnapshotEdge is one persisted edge
type SnapshotEdge struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// LayoutSnapshotStore persists per-map layout snapshots
type LayoutSnapshotStore interface {
	// Save stores the snapshot for a learning map, replacing any previous one
	Save(ctx context.Context, snapshot *LayoutSnapshot) error

	// Get retrieves the snapshot for a learning map, nil when none exists
	Get(ctx context.Context, learningMapID string) (*LayoutSnapshot, error)

	// Delete removes the snapshot for a learning map
	Delete(ctx context.Context, learningMapID string) error
}

// ContentGenerator produces article text from a prompt. Implementations call
// an external model; any failure means the article's content simply stays
// empty until a retry.
type ContentGenerator interface {
	// GenerateArticle produces the body text answering a question in the
	// context of its parent article
	GenerateArticle(ctx context.Context, req GenerationRequest) (string, error)

	// DeriveInsights produces summary, takeaways, and term tooltips for an
	// already-written article body
	DeriveInsights(ctx context.Context, body string) (*Insights, error)
}

// GenerationRequest carries the inputs for article generation
type GenerationRequest struct {
	SubjectTitle  string
	QuestionText  string
	ParentContent string
}

// Insights is the derived layer over an article body
type Insights struct {
	Summary   string            `json:"summary"`
	Takeaways []string          `json:"takeaways"`
	Tooltips  map[string]string `json:"tooltips"`
}

// EventStore defines the interface for event persistence
type EventStore interface {
	// SaveEvents persists domain events
	SaveEvents(ctx context.Context, events []events.DomainEvent) error

	// GetEvents retrieves events for an aggregate
	GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error)

	// GetEventsByType retrieves events of a specific type
	GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error)

	// DeleteEvents removes all events for an aggregate
	DeleteEvents(ctx context.Context, aggregateID string) error
}

// UnitOfWork defines a transaction boundary for aggregate operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction
	Rollback() error

	// ArticleRepository returns the article repository for this transaction
	ArticleRepository() ArticleRepository

	// QuestionRepository returns the question repository for this transaction
	QuestionRepository() QuestionRepository

	// LearningMapRepository returns the map repository for this transaction
	LearningMapRepository() LearningMapRepository
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes a handler
	Unsubscribe(eventType string, handler EventHandler) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
