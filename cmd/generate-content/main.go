// Package main implements the Lambda worker that fills article content.
// It consumes question.asked events from EventBridge, generates the answer
// article through the content generator, and derives insights once the
// content is in place. Running it outside Lambda processes a single
// article given on the command line, which is handy for backfills.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"learnmap-backend/application/services"
	"learnmap-backend/infrastructure/config"
	"learnmap-backend/infrastructure/di"
)

// Global dependencies for Lambda performance optimization
var generationService *services.GenerationService

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	generationService = container.GenerationService

	log.Println("Content generation worker initialized")
}

// questionAskedDetail mirrors the event payload published to EventBridge.
type questionAskedDetail struct {
	LearningMapID  string `json:"learning_map_id"`
	ChildArticleID string `json:"child_article_id"`
}

type articleContentFilledDetail struct {
	ArticleID string `json:"article_id"`
}

// handler routes EventBridge events to the generation service
func handler(ctx context.Context, event awsevents.CloudWatchEvent) error {
	log.Printf("Received %s event %s", event.DetailType, event.ID)

	switch event.DetailType {
	case "question.asked":
		var detail questionAskedDetail
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return fmt.Errorf("failed to parse question.asked event: %w", err)
		}
		if detail.LearningMapID == "" || detail.ChildArticleID == "" {
			return fmt.Errorf("question.asked event %s missing map or article ID", event.ID)
		}
		return generationService.GenerateForArticle(ctx, detail.LearningMapID, detail.ChildArticleID)

	case "article.content_filled":
		var detail articleContentFilledDetail
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return fmt.Errorf("failed to parse article.content_filled event: %w", err)
		}
		if detail.ArticleID == "" {
			return fmt.Errorf("article.content_filled event %s missing article ID", event.ID)
		}
		return generationService.EnrichArticle(ctx, detail.ArticleID)

	default:
		// Other event types share the bus; ignore them quietly.
		log.Printf("Ignoring event type %s", event.DetailType)
		return nil
	}
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting content generation Lambda")
		lambda.Start(handler)
		return
	}

	// Local backfill mode: generate-content <learning-map-id> <article-id>
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <learning-map-id> <article-id>", os.Args[0])
	}

	if err := generationService.GenerateForArticle(context.Background(), os.Args[1], os.Args[2]); err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	log.Printf("Generated content for article %s", os.Args[2])
}
