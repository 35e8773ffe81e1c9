package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"learnmap-backend/application/ports"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"
)

// Store holds all in-memory collections behind one mutex so the
// cross-collection transaction in CreateArticleFromQuestion stays atomic.
// It backs local development and integration tests.
type Store struct {
	mu        sync.RWMutex
	articles  map[string]*entities.Article
	questions map[string]*entities.Question
	maps      map[string]*aggregates.LearningMap
	subjects  map[string]*aggregates.Subject
	snapshots map[string]*ports.LayoutSnapshot

	// childIdx maps child article ID to question ID, mirroring the
	// unique-child constraint the DynamoDB layer enforces with conditions
	childIdx map[string]string
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		articles:  make(map[string]*entities.Article),
		questions: make(map[string]*entities.Question),
		maps:      make(map[string]*aggregates.LearningMap),
		subjects:  make(map[string]*aggregates.Subject),
		snapshots: make(map[string]*ports.LayoutSnapshot),
		childIdx:  make(map[string]string),
	}
}

// Articles returns the article repository view of the store
func (s *Store) Articles() ports.ArticleRepository { return &articleRepo{s} }

// Questions returns the question repository view of the store
func (s *Store) Questions() ports.QuestionRepository { return &questionRepo{s} }

// LearningMaps returns the learning map repository view of the store
func (s *Store) LearningMaps() ports.LearningMapRepository { return &mapRepo{s} }

// Subjects returns the subject repository view of the store
func (s *Store) Subjects() ports.SubjectRepository { return &subjectRepo{s} }

// LayoutSnapshots returns the snapshot store view of the store
func (s *Store) LayoutSnapshots() ports.LayoutSnapshotStore { return &snapshotStore{s} }

type articleRepo struct{ store *Store }

func (r *articleRepo) Save(ctx context.Context, article *entities.Article) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.articles[article.ID().String()] = article
	return nil
}

func (r *articleRepo) GetByID(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	article, ok := r.store.articles[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("article not found: %s", id.String()))
	}
	return article, nil
}

func (r *articleRepo) ListByMap(ctx context.Context, learningMapID string) ([]*entities.Article, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var articles []*entities.Article
	for _, article := range r.store.articles {
		if article.LearningMapID() == learningMapID {
			articles = append(articles, article)
		}
	}
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].CreatedAt().Before(articles[j].CreatedAt())
	})
	return articles, nil
}

func (r *articleRepo) UpdateContent(ctx context.Context, article *entities.Article) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.articles[article.ID().String()]; !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("article not found: %s", article.ID().String()))
	}
	r.store.articles[article.ID().String()] = article
	return nil
}

func (r *articleRepo) Delete(ctx context.Context, id valueobjects.ArticleID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.articles, id.String())
	delete(r.store.childIdx, id.String())
	return nil
}

type questionRepo struct{ store *Store }

func (r *questionRepo) Save(ctx context.Context, question *entities.Question) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.questions[question.ID().String()] = question
	r.store.childIdx[question.ChildArticleID().String()] = question.ID().String()
	return nil
}

func (r *questionRepo) GetByID(ctx context.Context, id valueobjects.QuestionID) (*entities.Question, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	question, ok := r.store.questions[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("question not found: %s", id.String()))
	}
	return question, nil
}

func (r *questionRepo) ListByMap(ctx context.Context, learningMapID string) ([]*entities.Question, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var questions []*entities.Question
	for _, question := range r.store.questions {
		if question.LearningMapID() == learningMapID {
			questions = append(questions, question)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].CreatedAt().Before(questions[j].CreatedAt())
	})
	return questions, nil
}

func (r *questionRepo) Delete(ctx context.Context, id valueobjects.QuestionID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if question, ok := r.store.questions[id.String()]; ok {
		delete(r.store.childIdx, question.ChildArticleID().String())
	}
	delete(r.store.questions, id.String())
	return nil
}

type mapRepo struct{ store *Store }

func (r *mapRepo) Save(ctx context.Context, lm *aggregates.LearningMap) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.maps[lm.ID().String()] = lm
	return nil
}

func (r *mapRepo) GetByID(ctx context.Context, id aggregates.LearningMapID) (*aggregates.LearningMap, error) {
	r.store.mu.RLock()
	stored, ok := r.store.maps[id.String()]
	r.store.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("learning map not found: %s", id.String()))
	}

	// Rehydrate so callers see articles and questions in creation order,
	// matching the behavior of the DynamoDB repository
	lm, err := aggregates.ReconstructLearningMap(
		stored.ID().String(),
		stored.SubjectID(),
		stored.UserID(),
		stored.Name(),
		stored.CreatedAt(),
		stored.UpdatedAt(),
	)
	if err != nil {
		return nil, err
	}

	articles, _ := (&articleRepo{r.store}).ListByMap(ctx, id.String())
	questions, _ := (&questionRepo{r.store}).ListByMap(ctx, id.String())
	for _, article := range articles {
		lm.AttachArticle(article)
	}
	for _, question := range questions {
		lm.AttachQuestion(question)
	}

	return lm, nil
}

func (r *mapRepo) ListBySubject(ctx context.Context, subjectID string) ([]*aggregates.LearningMap, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var maps []*aggregates.LearningMap
	for _, lm := range r.store.maps {
		if lm.SubjectID() == subjectID {
			maps = append(maps, lm)
		}
	}
	sort.Slice(maps, func(i, j int) bool {
		return maps[i].CreatedAt().Before(maps[j].CreatedAt())
	})
	return maps, nil
}

func (r *mapRepo) ListByUser(ctx context.Context, userID string) ([]*aggregates.LearningMap, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var maps []*aggregates.LearningMap
	for _, lm := range r.store.maps {
		if lm.UserID() == userID {
			maps = append(maps, lm)
		}
	}
	sort.Slice(maps, func(i, j int) bool {
		return maps[i].CreatedAt().Before(maps[j].CreatedAt())
	})
	return maps, nil
}

func (r *mapRepo) CreateArticleFromQuestion(
	ctx context.Context,
	lm *aggregates.LearningMap,
	article *entities.Article,
	question *entities.Question,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.articles[article.ID().String()]; exists {
		return pkgerrors.NewConflictError(fmt.Sprintf("article already exists: %s", article.ID().String()))
	}
	if _, exists := r.store.childIdx[article.ID().String()]; exists {
		return pkgerrors.NewConflictError(fmt.Sprintf("article already has a parent question: %s", article.ID().String()))
	}

	r.store.articles[article.ID().String()] = article
	r.store.questions[question.ID().String()] = question
	r.store.childIdx[article.ID().String()] = question.ID().String()
	r.store.maps[lm.ID().String()] = lm

	return nil
}

func (r *mapRepo) Delete(ctx context.Context, id aggregates.LearningMapID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for articleID, article := range r.store.articles {
		if article.LearningMapID() == id.String() {
			delete(r.store.articles, articleID)
			delete(r.store.childIdx, articleID)
		}
	}
	for questionID, question := range r.store.questions {
		if question.LearningMapID() == id.String() {
			delete(r.store.questions, questionID)
		}
	}
	delete(r.store.maps, id.String())
	delete(r.store.snapshots, id.String())

	return nil
}

type subjectRepo struct{ store *Store }

func (r *subjectRepo) Save(ctx context.Context, subject *aggregates.Subject) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.subjects[subject.ID().String()] = subject
	return nil
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (*aggregates.Subject, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	subject, ok := r.store.subjects[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("subject not found: %s", id))
	}
	return subject, nil
}

func (r *subjectRepo) ListByUser(ctx context.Context, userID string) ([]*aggregates.Subject, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var subjects []*aggregates.Subject
	for _, subject := range r.store.subjects {
		if subject.UserID() == userID {
			subjects = append(subjects, subject)
		}
	}
	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].CreatedAt().Before(subjects[j].CreatedAt())
	})
	return subjects, nil
}

func (r *subjectRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.subjects, id)
	return nil
}

type snapshotStore struct{ store *Store }

func (s *snapshotStore) Save(ctx context.Context, snapshot *ports.LayoutSnapshot) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.snapshots[snapshot.LearningMapID] = snapshot
	return nil
}

func (s *snapshotStore) Get(ctx context.Context, learningMapID string) (*ports.LayoutSnapshot, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return s.store.snapshots[learningMapID], nil
}

func (s *snapshotStore) Delete(ctx context.Context, learningMapID string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	delete(s.store.snapshots, learningMapID)
	return nil
}
