package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	"learnmap-backend/application/sagas"
	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
)

// GenerationService fills pending articles with generated content and derives
// reading insights from the result. It is invoked directly by the question
// orchestrator and by the generate-content Lambda, bypassing the command bus.
type GenerationService struct {
	mapRepo     ports.LearningMapRepository
	articleRepo ports.ArticleRepository
	subjectRepo ports.SubjectRepository
	generator   ports.ContentGenerator
	publisher   ports.EventPublisher
	logger      *zap.Logger
}

// NewGenerationService creates a new generation service
func NewGenerationService(
	mapRepo ports.LearningMapRepository,
	articleRepo ports.ArticleRepository,
	subjectRepo ports.SubjectRepository,
	generator ports.ContentGenerator,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *GenerationService {
	return &GenerationService{
		mapRepo:     mapRepo,
		articleRepo: articleRepo,
		subjectRepo: subjectRepo,
		generator:   generator,
		publisher:   publisher,
		logger:      logger,
	}
}

// GenerateForArticle generates the body for a pending article and, when the
// body lands successfully, derives insights for it. A failed insight pass
// leaves the article filled but unenriched; it can be retried later.
func (s *GenerationService) GenerateForArticle(ctx context.Context, learningMapID, articleID string) error {
	lm, err := s.mapRepo.GetByID(ctx, aggregates.LearningMapID(learningMapID))
	if err != nil {
		return fmt.Errorf("failed to load learning map: %w", err)
	}

	id, err := valueobjects.NewArticleIDFromString(articleID)
	if err != nil {
		return fmt.Errorf("invalid article ID: %w", err)
	}

	article, err := lm.GetArticle(id)
	if err != nil {
		return fmt.Errorf("article not in learning map: %w", err)
	}

	if !article.IsPending() {
		s.logger.Debug("Article already filled, skipping generation",
			zap.String("article_id", articleID),
		)
		return nil
	}

	req, err := s.buildRequest(ctx, lm, article)
	if err != nil {
		return err
	}

	body, err := s.generator.GenerateArticle(ctx, req)
	if err != nil {
		return fmt.Errorf("content generation failed: %w", err)
	}

	content, err := valueobjects.NewArticleContent(body)
	if err != nil {
		return fmt.Errorf("generated content rejected: %w", err)
	}

	if err := article.FillContent(content); err != nil {
		return err
	}

	if err := s.articleRepo.UpdateContent(ctx, article); err != nil {
		return fmt.Errorf("failed to persist generated content: %w", err)
	}

	s.publishEvents(ctx, article)

	s.logger.Info("Article content generated",
		zap.String("learning_map_id", learningMapID),
		zap.String("article_id", articleID),
		zap.Int("word_count", content.WordCount()),
	)

	if err := s.EnrichArticle(ctx, articleID); err != nil {
		s.logger.Warn("Insight derivation failed, article left unenriched",
			zap.String("article_id", articleID),
			zap.Error(err),
		)
	}

	return nil
}

// EnrichArticle derives summary, takeaways and tooltips for a filled article.
// The LLM call is retried before giving up; the article content is only
// touched after a successful derivation.
func (s *GenerationService) EnrichArticle(ctx context.Context, articleID string) error {
	id, err := valueobjects.NewArticleIDFromString(articleID)
	if err != nil {
		return fmt.Errorf("invalid article ID: %w", err)
	}

	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load article: %w", err)
	}

	if article.Content().IsEmpty() {
		return fmt.Errorf("article %s has no content to derive insights from", articleID)
	}

	if article.Content().HasInsights() {
		return nil
	}

	saga := sagas.NewSagaBuilder("derive_article_insights", s.logger).
		WithMetadata("article_id", articleID).
		Build()

	saga.AddStep(sagas.SagaStep{
		Name: "derive_insights",
		Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
			return s.generator.DeriveInsights(ctx, article.Content().Body())
		},
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	})

	saga.AddStep(sagas.SagaStep{
		Name: "persist_insights",
		Execute: func(ctx context.Context, data interface{}) (interface{}, error) {
			insights, ok := data.(*ports.Insights)
			if !ok || insights == nil {
				return nil, fmt.Errorf("derivation step produced no insights")
			}
			if err := article.DeriveInsights(insights.Summary, insights.Takeaways, insights.Tooltips); err != nil {
				return nil, err
			}
			if err := s.articleRepo.UpdateContent(ctx, article); err != nil {
				return nil, fmt.Errorf("failed to persist insights: %w", err)
			}
			return insights, nil
		},
	})

	if _, err := saga.Execute(ctx, nil); err != nil {
		return err
	}

	s.publishEvents(ctx, article)

	s.logger.Info("Article insights derived",
		zap.String("article_id", articleID),
		zap.Int("takeaways", len(article.Content().Takeaways())),
		zap.Int("tooltips", len(article.Content().Tooltips())),
	)

	return nil
}

// buildRequest assembles the prompt inputs for an article. Root articles are
// generated from the subject alone; child articles carry the question that
// spawned them plus an excerpt of the parent body for context.
func (s *GenerationService) buildRequest(
	ctx context.Context,
	lm *aggregates.LearningMap,
	article *entities.Article,
) (ports.GenerationRequest, error) {
	subject, err := s.subjectRepo.GetByID(ctx, lm.SubjectID())
	if err != nil {
		return ports.GenerationRequest{}, fmt.Errorf("failed to load subject: %w", err)
	}

	req := ports.GenerationRequest{SubjectTitle: subject.Title()}

	question := lm.IncomingQuestion(article.ID())
	if question == nil {
		return req, nil
	}

	req.QuestionText = question.Text()

	parent, err := lm.GetArticle(question.ParentArticleID())
	if err == nil && !parent.Content().IsEmpty() {
		req.ParentContent = parent.Content().Excerpt(2000)
	}

	return req, nil
}

func (s *GenerationService) publishEvents(ctx context.Context, article *entities.Article) {
	evts := article.GetUncommittedEvents()
	if len(evts) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(ctx, evts); err != nil {
		s.logger.Warn("Failed to publish article events",
			zap.String("article_id", article.ID().String()),
			zap.Error(err),
		)
		return
	}
	article.MarkEventsAsCommitted()
}
