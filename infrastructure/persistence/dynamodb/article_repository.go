package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	pkgerrors "learnmap-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ArticleRepository implements the ArticleRepository interface using DynamoDB
type ArticleRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewArticleRepository creates a new ArticleRepository
func NewArticleRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *ArticleRepository {
	return &ArticleRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// articleItem represents the DynamoDB item structure for an article
type articleItem struct {
	PK            string            `dynamodbav:"PK"`     // MAP#<learning_map_id>
	SK            string            `dynamodbav:"SK"`     // ARTICLE#<article_id>
	GSI1PK        string            `dynamodbav:"GSI1PK"` // ARTICLEID#<article_id>
	GSI1SK        string            `dynamodbav:"GSI1SK"` // Always "METADATA"
	EntityType    string            `dynamodbav:"EntityType"`
	ArticleID     string            `dynamodbav:"ArticleID"`
	UserID        string            `dynamodbav:"UserID"`
	LearningMapID string            `dynamodbav:"LearningMapID"`
	Body          string            `dynamodbav:"Body"`
	Summary       string            `dynamodbav:"Summary,omitempty"`
	Takeaways     []string          `dynamodbav:"Takeaways,omitempty"`
	Tooltips      map[string]string `dynamodbav:"Tooltips,omitempty"`
	IsRoot        bool              `dynamodbav:"IsRoot"`
	Status        string            `dynamodbav:"Status"`
	CreatedAt     string            `dynamodbav:"CreatedAt"`
	UpdatedAt     string            `dynamodbav:"UpdatedAt"`
	Version       int               `dynamodbav:"Version"`
}

func articleToItem(article *entities.Article) articleItem {
	content := article.Content()
	return articleItem{
		PK:            fmt.Sprintf("MAP#%s", article.LearningMapID()),
		SK:            fmt.Sprintf("ARTICLE#%s", article.ID().String()),
		GSI1PK:        fmt.Sprintf("ARTICLEID#%s", article.ID().String()),
		GSI1SK:        "METADATA",
		EntityType:    "ARTICLE",
		ArticleID:     article.ID().String(),
		UserID:        article.UserID(),
		LearningMapID: article.LearningMapID(),
		Body:          content.Body(),
		Summary:       content.Summary(),
		Takeaways:     content.Takeaways(),
		Tooltips:      content.Tooltips(),
		IsRoot:        article.IsRoot(),
		Status:        string(article.Status()),
		CreatedAt:     article.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:     article.UpdatedAt().Format(time.RFC3339Nano),
		Version:       article.Version(),
	}
}

func itemToArticle(item articleItem) (*entities.Article, error) {
	id, err := valueobjects.NewArticleIDFromString(item.ArticleID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored article ID: %w", err)
	}

	content := valueobjects.ReconstructArticleContent(item.Body, item.Summary, item.Takeaways, item.Tooltips)

	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored CreatedAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored UpdatedAt: %w", err)
	}

	return entities.ReconstructArticle(
		id,
		item.UserID,
		item.LearningMapID,
		content,
		item.IsRoot,
		entities.ArticleStatus(item.Status),
		createdAt,
		updatedAt,
		item.Version,
	)
}

// PrepareSaveItem prepares an article put for a transactional write
func (r *ArticleRepository) PrepareSaveItem(article *entities.Article) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(articleToItem(article))
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal article: %w", err)
	}

	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      av,
			// Reject the transaction if the article already exists
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}, nil
}

// Save persists an article to DynamoDB
func (r *ArticleRepository) Save(ctx context.Context, article *entities.Article) error {
	av, err := attributevalue.MarshalMap(articleToItem(article))
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save article to DynamoDB",
			zap.Error(err),
			zap.String("articleID", article.ID().String()),
		)
		return fmt.Errorf("failed to save article: %w", err)
	}

	r.logger.Debug("Saved article to DynamoDB",
		zap.String("articleID", article.ID().String()),
		zap.String("learningMapID", article.LearningMapID()),
		zap.String("status", string(article.Status())),
	)

	return nil
}

// GetByID retrieves an article by its ID
func (r *ArticleRepository) GetByID(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("ARTICLEID#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("article not found: %s", id.String()))
	}

	var item articleItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}

	return itemToArticle(item)
}

// ListByMap retrieves all articles belonging to a learning map
func (r *ArticleRepository) ListByMap(ctx context.Context, learningMapID string) ([]*entities.Article, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", learningMapID)},
			":sk": &types.AttributeValueMemberS{Value: "ARTICLE#"},
		},
	}

	var articles []*entities.Article
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query articles: %w", err)
		}

		for _, raw := range result.Items {
			var item articleItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal article item", zap.Error(err))
				continue
			}

			article, err := itemToArticle(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct article",
					zap.String("articleID", item.ArticleID),
					zap.Error(err),
				)
				continue
			}
			articles = append(articles, article)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return articles, nil
}

// UpdateContent persists the content fields of an article with optimistic
// locking on the version. A concurrent writer loses and can retry.
func (r *ArticleRepository) UpdateContent(ctx context.Context, article *entities.Article) error {
	content := article.Content()

	takeaways, err := attributevalue.Marshal(content.Takeaways())
	if err != nil {
		return fmt.Errorf("failed to marshal takeaways: %w", err)
	}
	tooltips, err := attributevalue.Marshal(content.Tooltips())
	if err != nil {
		return fmt.Errorf("failed to marshal tooltips: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", article.LearningMapID())},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ARTICLE#%s", article.ID().String())},
		},
		UpdateExpression: aws.String(
			"SET Body = :body, Summary = :summary, Takeaways = :takeaways, Tooltips = :tooltips, " +
				"#status = :status, UpdatedAt = :updatedAt, Version = :version",
		),
		ConditionExpression: aws.String("attribute_exists(PK) AND Version < :version"),
		ExpressionAttributeNames: map[string]string{
			"#status": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":body":      &types.AttributeValueMemberS{Value: content.Body()},
			":summary":   &types.AttributeValueMemberS{Value: content.Summary()},
			":takeaways": takeaways,
			":tooltips":  tooltips,
			":status":    &types.AttributeValueMemberS{Value: string(article.Status())},
			":updatedAt": &types.AttributeValueMemberS{Value: article.UpdatedAt().Format(time.RFC3339Nano)},
			":version":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", article.Version())},
		},
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return pkgerrors.NewConflictError(fmt.Sprintf("article %s was modified concurrently", article.ID().String()))
		}
		return fmt.Errorf("failed to update article content: %w", err)
	}

	r.logger.Debug("Updated article content",
		zap.String("articleID", article.ID().String()),
		zap.String("status", string(article.Status())),
		zap.Int("version", article.Version()),
	)

	return nil
}

// Delete removes an article
func (r *ArticleRepository) Delete(ctx context.Context, id valueobjects.ArticleID) error {
	// Resolve the map the article belongs to; the primary key needs it
	article, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", article.LearningMapID())},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ARTICLE#%s", id.String())},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}

	return nil
}
