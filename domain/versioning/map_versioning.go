// Package versioning tracks learning map revisions so callers can detect
// structural drift without diffing full aggregates.
package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"learnmap-backend/domain/core/aggregates"
)

// ChangeType identifies the kind of change captured in a version.
type ChangeType string

const (
	ChangeTypeArticleAdded   ChangeType = "article_added"
	ChangeTypeArticleRemoved ChangeType = "article_removed"
	ChangeTypeContentFilled  ChangeType = "content_filled"
	ChangeTypeInsightsAdded  ChangeType = "insights_added"
	ChangeTypeQuestionAsked  ChangeType = "question_asked"
)

// Change records a single modification within a version.
type Change struct {
	Type      ChangeType `json:"type"`
	EntityID  string     `json:"entity_id"`
	Timestamp time.Time  `json:"timestamp"`
}

// MapVersion is a point-in-time fingerprint of a learning map's structure.
type MapVersion struct {
	MapID         string    `json:"map_id"`
	Version       int       `json:"version"`
	Checksum      string    `json:"checksum"`
	ArticleCount  int       `json:"article_count"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     string    `json:"created_by"`
	Description   string    `json:"description"`
	Changes       []Change  `json:"changes"`
}

// VersioningService creates and compares map versions.
type VersioningService struct{}

// NewVersioningService creates a new versioning service.
func NewVersioningService() *VersioningService {
	return &VersioningService{}
}

// CreateVersion snapshots the current structure of a learning map.
func (s *VersioningService) CreateVersion(
	lm *aggregates.LearningMap,
	versionNumber int,
	userID string,
	description string,
) (*MapVersion, error) {
	if lm == nil {
		return nil, fmt.Errorf("learning map cannot be nil")
	}

	checksum, err := s.calculateChecksum(lm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return &MapVersion{
		MapID:         lm.ID().String(),
		Version:       versionNumber,
		Checksum:      checksum,
		ArticleCount:  len(lm.Articles()),
		QuestionCount: len(lm.Questions()),
		CreatedAt:     time.Now(),
		CreatedBy:     userID,
		Description:   description,
		Changes:       []Change{},
	}, nil
}

// Unchanged reports whether the map's structure matches a previous version.
// Rendering layers use this to skip reconciliation when nothing moved.
func (s *VersioningService) Unchanged(lm *aggregates.LearningMap, prev *MapVersion) (bool, error) {
	if prev == nil {
		return false, nil
	}
	checksum, err := s.calculateChecksum(lm)
	if err != nil {
		return false, err
	}
	return checksum == prev.Checksum, nil
}

// CompareVersions summarizes the difference between two versions.
func (s *VersioningService) CompareVersions(v1, v2 *MapVersion) (*VersionDiff, error) {
	if v1 == nil || v2 == nil {
		return nil, fmt.Errorf("versions cannot be nil")
	}

	diff := &VersionDiff{
		FromVersion:   v1.Version,
		ToVersion:     v2.Version,
		ArticlesAdded: v2.ArticleCount - v1.ArticleCount,
		QuestionsAdded: v2.QuestionCount - v1.QuestionCount,
		TimeDiff:      v2.CreatedAt.Sub(v1.CreatedAt),
	}

	for _, change := range v2.Changes {
		switch change.Type {
		case ChangeTypeContentFilled:
			diff.ArticlesFilled++
		case ChangeTypeInsightsAdded:
			diff.ArticlesEnriched++
		}
	}

	return diff, nil
}

// calculateChecksum derives a deterministic fingerprint from article IDs,
// their fill status, and the question links between them.
func (s *VersioningService) calculateChecksum(lm *aggregates.LearningMap) (string, error) {
	type articleDigest struct {
		ID     string `json:"id"`
		IsRoot bool   `json:"is_root"`
		Status string `json:"status"`
	}
	type questionDigest struct {
		ID     string `json:"id"`
		Parent string `json:"parent"`
		Child  string `json:"child"`
	}

	articles := make([]articleDigest, 0, len(lm.Articles()))
	for _, a := range lm.Articles() {
		articles = append(articles, articleDigest{
			ID:     a.ID().String(),
			IsRoot: a.IsRoot(),
			Status: string(a.Status()),
		})
	}
	sort.Slice(articles, func(i, j int) bool { return articles[i].ID < articles[j].ID })

	questions := make([]questionDigest, 0, len(lm.Questions()))
	for _, q := range lm.Questions() {
		questions = append(questions, questionDigest{
			ID:     q.ID().String(),
			Parent: q.ParentArticleID().String(),
			Child:  q.ChildArticleID().String(),
		})
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

	data := struct {
		ID        string           `json:"id"`
		Articles  []articleDigest  `json:"articles"`
		Questions []questionDigest `json:"questions"`
	}{
		ID:        lm.ID().String(),
		Articles:  articles,
		Questions: questions,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:]), nil
}

// VersionDiff represents the difference between two versions.
type VersionDiff struct {
	FromVersion      int           `json:"from_version"`
	ToVersion        int           `json:"to_version"`
	ArticlesAdded    int           `json:"articles_added"`
	ArticlesFilled   int           `json:"articles_filled"`
	ArticlesEnriched int           `json:"articles_enriched"`
	QuestionsAdded   int           `json:"questions_added"`
	TimeDiff         time.Duration `json:"time_diff"`
}
