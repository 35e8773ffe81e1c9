package aggregates

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/domain/events"
	pkgerrors "learnmap-backend/pkg/errors"
)

// LearningMapID represents a unique learning map identifier
type LearningMapID string

// NewLearningMapID creates a new random LearningMapID
func NewLearningMapID() LearningMapID {
	return LearningMapID(uuid.New().String())
}

// String returns the string representation
func (id LearningMapID) String() string {
	return string(id)
}

// LearningMap is the aggregate root for the canonical article/question graph
// of one subject exploration. It is the consistency boundary that keeps the
// graph a tree: exactly one root article, a unique incoming question per
// child article, and no cycles.
type LearningMap struct {
	id        LearningMapID
	subjectID string
	userID    string
	name      string
	articles  map[valueobjects.ArticleID]*entities.Article
	questions []*entities.Question
	childIdx  map[valueobjects.ArticleID]*entities.Question
	createdAt time.Time
	updatedAt time.Time
	version   int
	events    []events.DomainEvent
}

// NewLearningMap creates a new learning map aggregate
func NewLearningMap(subjectID, userID, name string) (*LearningMap, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}
	if name == "" {
		return nil, errors.New("learning map name required")
	}

	now := time.Now()
	m := &LearningMap{
		id:        NewLearningMapID(),
		subjectID: subjectID,
		userID:    userID,
		name:      name,
		articles:  make(map[valueobjects.ArticleID]*entities.Article),
		questions: []*entities.Question{},
		childIdx:  make(map[valueobjects.ArticleID]*entities.Question),
		createdAt: now,
		updatedAt: now,
		version:   1,
		events:    []events.DomainEvent{},
	}

	m.addEvent(events.NewLearningMapCreated(m.id.String(), subjectID, userID, name, now))

	return m, nil
}

// ReconstructLearningMap recreates a learning map from stored data.
// Articles and questions are attached afterwards via AttachArticle and
// AttachQuestion, which skip event emission and invariant mutation events.
func ReconstructLearningMap(
	id string,
	subjectID string,
	userID string,
	name string,
	createdAt, updatedAt time.Time,
) (*LearningMap, error) {
	if id == "" || userID == "" || name == "" {
		return nil, errors.New("required fields missing for learning map reconstruction")
	}

	return &LearningMap{
		id:        LearningMapID(id),
		subjectID: subjectID,
		userID:    userID,
		name:      name,
		articles:  make(map[valueobjects.ArticleID]*entities.Article),
		questions: []*entities.Question{},
		childIdx:  make(map[valueobjects.ArticleID]*entities.Question),
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   1,
		events:    []events.DomainEvent{},
	}, nil
}

// ID returns the learning map's unique identifier
func (m *LearningMap) ID() LearningMapID {
	return m.id
}

// SubjectID returns the owning subject's ID
func (m *LearningMap) SubjectID() string {
	return m.subjectID
}

// UserID returns the owner's ID
func (m *LearningMap) UserID() string {
	return m.userID
}

// Name returns the learning map's name
func (m *LearningMap) Name() string {
	return m.name
}

// CreatedAt returns when the map was created
func (m *LearningMap) CreatedAt() time.Time {
	return m.createdAt
}

// UpdatedAt returns when the map was last updated
func (m *LearningMap) UpdatedAt() time.Time {
	return m.updatedAt
}

// Articles returns all articles in the map
func (m *LearningMap) Articles() []*entities.Article {
	articles := make([]*entities.Article, 0, len(m.articles))
	for _, a := range m.articles {
		articles = append(articles, a)
	}
	return articles
}

// Questions returns all questions in creation order. Order matters: the
// tree builder visits children in question supply order, so a stable order
// here is what gives callers a stable visual order.
func (m *LearningMap) Questions() []*entities.Question {
	questions := make([]*entities.Question, len(m.questions))
	copy(questions, m.questions)
	return questions
}

// GetArticle retrieves an article by ID
func (m *LearningMap) GetArticle(id valueobjects.ArticleID) (*entities.Article, error) {
	article, exists := m.articles[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("article")
	}
	return article, nil
}

// HasArticle checks if an article exists in the map
func (m *LearningMap) HasArticle(id valueobjects.ArticleID) bool {
	_, exists := m.articles[id]
	return exists
}

// RootArticle returns the map's root article, or nil if the map is empty
func (m *LearningMap) RootArticle() *entities.Article {
	for _, a := range m.articles {
		if a.IsRoot() {
			return a
		}
	}
	return nil
}

// IncomingQuestion returns the unique question whose child is the given
// article, or nil for the root
func (m *LearningMap) IncomingQuestion(articleID valueobjects.ArticleID) *entities.Question {
	return m.childIdx[articleID]
}

// AddRootArticle seeds the map with its root article
func (m *LearningMap) AddRootArticle(article *entities.Article) error {
	if article == nil {
		return errors.New("article cannot be nil")
	}
	if !article.IsRoot() {
		return pkgerrors.NewStructuralError("seed article must be marked as root")
	}
	if m.RootArticle() != nil {
		return pkgerrors.NewStructuralError("learning map already has a root article")
	}

	m.articles[article.ID()] = article
	m.touch()
	return nil
}

// AddArticleWithQuestion atomically adds a child article and the question
// linking it to its parent. Both are admitted together or not at all; this
// mirrors the transactional pair the persistence layer writes.
func (m *LearningMap) AddArticleWithQuestion(article *entities.Article, question *entities.Question) error {
	if article == nil || question == nil {
		return errors.New("article and question are both required")
	}
	if article.IsRoot() {
		return pkgerrors.NewStructuralError("child article cannot be a root")
	}
	if !question.ChildArticleID().Equals(article.ID()) {
		return pkgerrors.NewStructuralError("question must point at the article being added")
	}
	if _, exists := m.articles[article.ID()]; exists {
		return pkgerrors.NewConflictError("article already exists in map")
	}
	if !m.HasArticle(question.ParentArticleID()) {
		return pkgerrors.NewStructuralError("parent article does not exist in map")
	}
	if m.childIdx[question.ChildArticleID()] != nil {
		return pkgerrors.NewConflictError("child article already has an incoming question")
	}
	// The parent chain always terminates at the root and the child is brand
	// new, so admitting this pair cannot introduce a cycle.

	m.articles[article.ID()] = article
	m.questions = append(m.questions, question)
	m.childIdx[question.ChildArticleID()] = question
	m.touch()

	return nil
}

// RemoveArticle removes an article and every descendant below it, so the
// remaining articles stay reachable from the root. The root itself is never
// removable; a map keeps exactly one root for its whole lifetime. It returns
// the IDs of all articles that were removed.
func (m *LearningMap) RemoveArticle(articleID valueobjects.ArticleID) ([]valueobjects.ArticleID, error) {
	article, exists := m.articles[articleID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("article")
	}
	if article.IsRoot() {
		return nil, pkgerrors.NewStructuralError("cannot remove the root article")
	}

	// Walk the subtree through parent edges.
	doomed := map[valueobjects.ArticleID]bool{articleID: true}
	queue := []valueobjects.ArticleID{articleID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, q := range m.questions {
			child := q.ChildArticleID()
			if q.ParentArticleID().Equals(parent) && !doomed[child] {
				doomed[child] = true
				queue = append(queue, child)
			}
		}
	}

	kept := m.questions[:0]
	for _, q := range m.questions {
		if doomed[q.ChildArticleID()] || doomed[q.ParentArticleID()] {
			delete(m.childIdx, q.ChildArticleID())
			continue
		}
		kept = append(kept, q)
	}
	m.questions = kept

	removed := make([]valueobjects.ArticleID, 0, len(doomed))
	for id := range doomed {
		delete(m.articles, id)
		removed = append(removed, id)
	}
	m.touch()

	return removed, nil
}

// AttachArticle attaches a persisted article during reconstruction
func (m *LearningMap) AttachArticle(article *entities.Article) {
	if article != nil {
		m.articles[article.ID()] = article
	}
}

// AttachQuestion attaches a persisted question during reconstruction.
// Questions must be attached in creation order.
func (m *LearningMap) AttachQuestion(question *entities.Question) {
	if question != nil {
		m.questions = append(m.questions, question)
		m.childIdx[question.ChildArticleID()] = question
	}
}

// Validate ensures graph invariants: exactly one root, dangling-free
// questions, unique child per question, no cycles, full reachability.
func (m *LearningMap) Validate() error {
	if len(m.articles) == 0 {
		return nil // empty map is a valid, displayable state
	}

	roots := 0
	for _, a := range m.articles {
		if a.IsRoot() {
			roots++
		}
	}
	if roots != 1 {
		return pkgerrors.NewStructuralError("learning map must contain exactly one root article")
	}

	children := make(map[valueobjects.ArticleID]bool, len(m.questions))
	for _, q := range m.questions {
		if _, ok := m.articles[q.ParentArticleID()]; !ok {
			return pkgerrors.NewStructuralError("question references a missing parent article")
		}
		child, ok := m.articles[q.ChildArticleID()]
		if !ok {
			return pkgerrors.NewStructuralError("question references a missing child article")
		}
		if child.IsRoot() {
			return pkgerrors.NewStructuralError("root article cannot be the child of a question")
		}
		if children[q.ChildArticleID()] {
			return pkgerrors.NewStructuralError("child article has more than one incoming question")
		}
		children[q.ChildArticleID()] = true
	}

	// Every non-root article must be reachable from the root.
	reachable := m.reachableFromRoot()
	for id := range m.articles {
		if !reachable[id] {
			return pkgerrors.NewStructuralError("article is not reachable from the root")
		}
	}

	return nil
}

// reachableFromRoot walks questions breadth-first from the root
func (m *LearningMap) reachableFromRoot() map[valueobjects.ArticleID]bool {
	reachable := make(map[valueobjects.ArticleID]bool, len(m.articles))
	root := m.RootArticle()
	if root == nil {
		return reachable
	}

	outgoing := make(map[valueobjects.ArticleID][]valueobjects.ArticleID, len(m.questions))
	for _, q := range m.questions {
		outgoing[q.ParentArticleID()] = append(outgoing[q.ParentArticleID()], q.ChildArticleID())
	}

	queue := []valueobjects.ArticleID{root.ID()}
	reachable[root.ID()] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range outgoing[current] {
			if !reachable[child] {
				reachable[child] = true
				queue = append(queue, child)
			}
		}
	}

	return reachable
}

// GetUncommittedEvents returns all uncommitted domain events, including
// those raised by articles and questions in the aggregate
func (m *LearningMap) GetUncommittedEvents() []events.DomainEvent {
	all := make([]events.DomainEvent, len(m.events))
	copy(all, m.events)

	for _, a := range m.articles {
		all = append(all, a.GetUncommittedEvents()...)
	}
	for _, q := range m.questions {
		all = append(all, q.GetUncommittedEvents()...)
	}

	return all
}

// MarkEventsAsCommitted clears all uncommitted events
func (m *LearningMap) MarkEventsAsCommitted() {
	m.events = []events.DomainEvent{}
	for _, a := range m.articles {
		a.MarkEventsAsCommitted()
	}
	for _, q := range m.questions {
		q.MarkEventsAsCommitted()
	}
}

func (m *LearningMap) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}

func (m *LearningMap) touch() {
	m.updatedAt = time.Now()
	m.version++
}
