package events

import (
	"time"

	"learnmap-backend/domain/core/valueobjects"
)

// SourceBackend identifies this service as the event source on the bus
const SourceBackend = "learnmap.backend"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Article Events

// ArticleCreated is raised when a placeholder article is created.
// Content is empty at this point; the generation pipeline fills it later.
type ArticleCreated struct {
	BaseEvent
	ArticleID     valueobjects.ArticleID `json:"article_id"`
	LearningMapID string                 `json:"learning_map_id"`
	UserID        string                 `json:"user_id"`
	IsRoot        bool                   `json:"is_root"`
}

// NewArticleCreated creates an ArticleCreated event
func NewArticleCreated(articleID valueobjects.ArticleID, learningMapID, userID string, isRoot bool, timestamp time.Time) ArticleCreated {
	return ArticleCreated{
		BaseEvent: BaseEvent{
			AggregateID: articleID.String(),
			EventType:   "article.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		ArticleID:     articleID,
		LearningMapID: learningMapID,
		UserID:        userID,
		IsRoot:        isRoot,
	}
}

// ArticleContentFilled is raised when generated content lands on an article.
// The stream arrives in one logical batch for reconciliation purposes.
type ArticleContentFilled struct {
	BaseEvent
	ArticleID     valueobjects.ArticleID `json:"article_id"`
	LearningMapID string                 `json:"learning_map_id"`
	WordCount     int                    `json:"word_count"`
}

// NewArticleContentFilled creates an ArticleContentFilled event
func NewArticleContentFilled(articleID valueobjects.ArticleID, learningMapID string, wordCount int, timestamp time.Time) ArticleContentFilled {
	return ArticleContentFilled{
		BaseEvent: BaseEvent{
			AggregateID: articleID.String(),
			EventType:   "article.content_filled",
			Timestamp:   timestamp,
			Version:     1,
		},
		ArticleID:     articleID,
		LearningMapID: learningMapID,
		WordCount:     wordCount,
	}
}

// ArticleInsightsDerived is raised when summary, takeaways and tooltips
// have been computed from the article body
type ArticleInsightsDerived struct {
	BaseEvent
	ArticleID     valueobjects.ArticleID `json:"article_id"`
	LearningMapID string                 `json:"learning_map_id"`
	TakeawayCount int                    `json:"takeaway_count"`
	TooltipCount  int                    `json:"tooltip_count"`
}

// NewArticleInsightsDerived creates an ArticleInsightsDerived event
func NewArticleInsightsDerived(articleID valueobjects.ArticleID, learningMapID string, takeawayCount, tooltipCount int, timestamp time.Time) ArticleInsightsDerived {
	return ArticleInsightsDerived{
		BaseEvent: BaseEvent{
			AggregateID: articleID.String(),
			EventType:   "article.insights_derived",
			Timestamp:   timestamp,
			Version:     1,
		},
		ArticleID:     articleID,
		LearningMapID: learningMapID,
		TakeawayCount: takeawayCount,
		TooltipCount:  tooltipCount,
	}
}

// ArticleDeleted is raised by the administrative delete escape hatch
type ArticleDeleted struct {
	BaseEvent
	ArticleID     valueobjects.ArticleID `json:"article_id"`
	LearningMapID string                 `json:"learning_map_id"`
	UserID        string                 `json:"user_id"`
}

// NewArticleDeleted creates an ArticleDeleted event
func NewArticleDeleted(articleID valueobjects.ArticleID, learningMapID, userID string, timestamp time.Time) ArticleDeleted {
	return ArticleDeleted{
		BaseEvent: BaseEvent{
			AggregateID: articleID.String(),
			EventType:   "article.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		ArticleID:     articleID,
		LearningMapID: learningMapID,
		UserID:        userID,
	}
}

// Question Events

// QuestionAsked is raised when a question is attached to an article.
// The child article referenced here is created in the same transaction.
type QuestionAsked struct {
	BaseEvent
	QuestionID      valueobjects.QuestionID `json:"question_id"`
	LearningMapID   string                  `json:"learning_map_id"`
	ParentArticleID valueobjects.ArticleID  `json:"parent_article_id"`
	ChildArticleID  valueobjects.ArticleID  `json:"child_article_id"`
	Text            string                  `json:"text"`
	IsImplicit      bool                    `json:"is_implicit"`
}

// NewQuestionAsked creates a QuestionAsked event
func NewQuestionAsked(
	questionID valueobjects.QuestionID,
	learningMapID string,
	parentArticleID, childArticleID valueobjects.ArticleID,
	text string,
	isImplicit bool,
	timestamp time.Time,
) QuestionAsked {
	return QuestionAsked{
		BaseEvent: BaseEvent{
			AggregateID: questionID.String(),
			EventType:   "question.asked",
			Timestamp:   timestamp,
			Version:     1,
		},
		QuestionID:      questionID,
		LearningMapID:   learningMapID,
		ParentArticleID: parentArticleID,
		ChildArticleID:  childArticleID,
		Text:            text,
		IsImplicit:      isImplicit,
	}
}

// Learning Map Events

// LearningMapCreated is raised when a new learning map is created
type LearningMapCreated struct {
	BaseEvent
	LearningMapID string `json:"learning_map_id"`
	SubjectID     string `json:"subject_id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
}

// NewLearningMapCreated creates a LearningMapCreated event
func NewLearningMapCreated(learningMapID, subjectID, userID, name string, timestamp time.Time) LearningMapCreated {
	return LearningMapCreated{
		BaseEvent: BaseEvent{
			AggregateID: learningMapID,
			EventType:   "map.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		LearningMapID: learningMapID,
		SubjectID:     subjectID,
		UserID:        userID,
		Name:          name,
	}
}

// Subject Events

// SubjectCreated is raised when a new subject is registered
type SubjectCreated struct {
	BaseEvent
	SubjectID string `json:"subject_id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
}

// NewSubjectCreated creates a SubjectCreated event
func NewSubjectCreated(subjectID, userID, title string, timestamp time.Time) SubjectCreated {
	return SubjectCreated{
		BaseEvent: BaseEvent{
			AggregateID: subjectID,
			EventType:   "subject.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		SubjectID: subjectID,
		UserID:    userID,
		Title:     title,
	}
}

// NodeSelected is raised when a viewer clicks a rendered node in a live
// diagram session
type NodeSelected struct {
	BaseEvent
	LearningMapID string `json:"learning_map_id"`
	NodeID        string `json:"node_id"`
	UserID        string `json:"user_id"`
}

// NewNodeSelected creates a NodeSelected event
func NewNodeSelected(learningMapID, nodeID, userID string, timestamp time.Time) NodeSelected {
	return NodeSelected{
		BaseEvent: BaseEvent{
			AggregateID: learningMapID,
			EventType:   "diagram.node_selected",
			Timestamp:   timestamp,
			Version:     1,
		},
		LearningMapID: learningMapID,
		NodeID:        nodeID,
		UserID:        userID,
	}
}

// Layout Events

// LayoutSnapshotSaved is raised when a rendered layout is persisted for a map
type LayoutSnapshotSaved struct {
	BaseEvent
	LearningMapID string `json:"learning_map_id"`
	NodeCount     int    `json:"node_count"`
}

// NewLayoutSnapshotSaved creates a LayoutSnapshotSaved event
func NewLayoutSnapshotSaved(learningMapID string, nodeCount int, timestamp time.Time) LayoutSnapshotSaved {
	return LayoutSnapshotSaved{
		BaseEvent: BaseEvent{
			AggregateID: learningMapID,
			EventType:   "layout.snapshot_saved",
			Timestamp:   timestamp,
			Version:     1,
		},
		LearningMapID: learningMapID,
		NodeCount:     nodeCount,
	}
}
