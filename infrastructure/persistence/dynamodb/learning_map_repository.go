package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"learnmap-backend/domain/core/aggregates"
	"learnmap-backend/domain/core/entities"
	pkgerrors "learnmap-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// LearningMapRepository implements the LearningMapRepository interface using DynamoDB
type LearningMapRepository struct {
	client       *dynamodb.Client
	tableName    string
	logger       *zap.Logger
	articleRepo  *ArticleRepository
	questionRepo *QuestionRepository
}

// NewLearningMapRepository creates a new LearningMapRepository
func NewLearningMapRepository(
	client *dynamodb.Client,
	tableName string,
	articleRepo *ArticleRepository,
	questionRepo *QuestionRepository,
	logger *zap.Logger,
) *LearningMapRepository {
	return &LearningMapRepository{
		client:       client,
		tableName:    tableName,
		logger:       logger,
		articleRepo:  articleRepo,
		questionRepo: questionRepo,
	}
}

// mapItem represents the DynamoDB item structure for a learning map
type mapItem struct {
	PK            string `dynamodbav:"PK"`     // USER#<user_id>
	SK            string `dynamodbav:"SK"`     // MAP#<map_id>
	GSI1PK        string `dynamodbav:"GSI1PK"` // MAPID#<map_id>, enables lookup by map ID
	GSI1SK        string `dynamodbav:"GSI1SK"` // Always "METADATA"
	GSI2PK        string `dynamodbav:"GSI2PK"` // SUBJECT#<subject_id>, enables listing by subject
	GSI2SK        string `dynamodbav:"GSI2SK"` // MAP#<map_id>
	EntityType    string `dynamodbav:"EntityType"`
	LearningMapID string `dynamodbav:"LearningMapID"`
	SubjectID     string `dynamodbav:"SubjectID"`
	UserID        string `dynamodbav:"UserID"`
	Name          string `dynamodbav:"Name"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
	UpdatedAt     string `dynamodbav:"UpdatedAt"`
	Version       int    `dynamodbav:"Version"`
}

func mapToItem(lm *aggregates.LearningMap) mapItem {
	return mapItem{
		PK:            fmt.Sprintf("USER#%s", lm.UserID()),
		SK:            fmt.Sprintf("MAP#%s", lm.ID().String()),
		GSI1PK:        fmt.Sprintf("MAPID#%s", lm.ID().String()),
		GSI1SK:        "METADATA",
		GSI2PK:        fmt.Sprintf("SUBJECT#%s", lm.SubjectID()),
		GSI2SK:        fmt.Sprintf("MAP#%s", lm.ID().String()),
		EntityType:    "MAP",
		LearningMapID: lm.ID().String(),
		SubjectID:     lm.SubjectID(),
		UserID:        lm.UserID(),
		Name:          lm.Name(),
		CreatedAt:     lm.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:     lm.UpdatedAt().Format(time.RFC3339Nano),
		Version:       1,
	}
}

func itemToMap(item mapItem) (*aggregates.LearningMap, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored CreatedAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored UpdatedAt: %w", err)
	}

	return aggregates.ReconstructLearningMap(
		item.LearningMapID,
		item.SubjectID,
		item.UserID,
		item.Name,
		createdAt,
		updatedAt,
	)
}

// Save persists a learning map's own record (not its articles and questions)
func (r *LearningMapRepository) Save(ctx context.Context, lm *aggregates.LearningMap) error {
	av, err := attributevalue.MarshalMap(mapToItem(lm))
	if err != nil {
		return fmt.Errorf("failed to marshal learning map: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save learning map to DynamoDB",
			zap.Error(err),
			zap.String("learningMapID", lm.ID().String()),
		)
		return fmt.Errorf("failed to save learning map: %w", err)
	}

	r.logger.Debug("Saved learning map to DynamoDB",
		zap.String("learningMapID", lm.ID().String()),
		zap.String("userID", lm.UserID()),
	)

	return nil
}

// GetByID retrieves a fully hydrated learning map. Articles and questions
// load in parallel and attach in creation order, so tree construction
// downstream sees children in the order their questions were asked.
func (r *LearningMapRepository) GetByID(ctx context.Context, id aggregates.LearningMapID) (*aggregates.LearningMap, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAPID#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning map: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("learning map not found: %s", id.String()))
	}

	var item mapItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal learning map: %w", err)
	}

	lm, err := itemToMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct learning map: %w", err)
	}

	var articles []*entities.Article
	var questions []*entities.Question
	var articleErr, questionErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		articles, articleErr = r.articleRepo.ListByMap(ctx, id.String())
	}()
	go func() {
		defer wg.Done()
		questions, questionErr = r.questionRepo.ListByMap(ctx, id.String())
	}()
	wg.Wait()

	if articleErr != nil {
		return nil, fmt.Errorf("failed to load articles for map: %w", articleErr)
	}
	if questionErr != nil {
		return nil, fmt.Errorf("failed to load questions for map: %w", questionErr)
	}

	for _, article := range articles {
		lm.AttachArticle(article)
	}
	for _, question := range questions {
		lm.AttachQuestion(question)
	}

	r.logger.Debug("Hydrated learning map",
		zap.String("learningMapID", id.String()),
		zap.Int("articleCount", len(articles)),
		zap.Int("questionCount", len(questions)),
	)

	return lm, nil
}

// ListBySubject retrieves all learning maps for a subject
func (r *LearningMapRepository) ListBySubject(ctx context.Context, subjectID string) ([]*aggregates.LearningMap, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI2"),
		KeyConditionExpression: aws.String("GSI2PK = :pk AND begins_with(GSI2SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("SUBJECT#%s", subjectID)},
			":sk": &types.AttributeValueMemberS{Value: "MAP#"},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps by subject: %w", err)
	}

	return r.unmarshalMaps(result.Items), nil
}

// ListByUser retrieves all learning maps owned by a user
func (r *LearningMapRepository) ListByUser(ctx context.Context, userID string) ([]*aggregates.LearningMap, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			":sk": &types.AttributeValueMemberS{Value: "MAP#"},
		},
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query maps by user: %w", err)
	}

	return r.unmarshalMaps(result.Items), nil
}

func (r *LearningMapRepository) unmarshalMaps(items []map[string]types.AttributeValue) []*aggregates.LearningMap {
	maps := make([]*aggregates.LearningMap, 0, len(items))
	for _, raw := range items {
		var item mapItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal map item", zap.Error(err))
			continue
		}

		lm, err := itemToMap(item)
		if err != nil {
			r.logger.Warn("Failed to reconstruct learning map",
				zap.String("learningMapID", item.LearningMapID),
				zap.Error(err),
			)
			continue
		}
		maps = append(maps, lm)
	}
	return maps
}

// CreateArticleFromQuestion persists an empty child article plus its linking
// question as one transaction. Condition expressions reject the write when
// either row already exists, so the one-parent-per-article invariant holds
// even under concurrent question submission.
func (r *LearningMapRepository) CreateArticleFromQuestion(
	ctx context.Context,
	lm *aggregates.LearningMap,
	article *entities.Article,
	question *entities.Question,
) error {
	articlePut, err := r.articleRepo.PrepareSaveItem(article)
	if err != nil {
		return err
	}
	questionPut, err := r.questionRepo.PrepareSaveItem(question)
	if err != nil {
		return err
	}

	mapAV, err := attributevalue.MarshalMap(mapToItem(lm))
	if err != nil {
		return fmt.Errorf("failed to marshal learning map: %w", err)
	}

	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			articlePut,
			questionPut,
			{
				Put: &types.Put{
					TableName: aws.String(r.tableName),
					Item:      mapAV,
				},
			},
		},
	}

	if _, err := r.client.TransactWriteItems(ctx, input); err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return pkgerrors.NewConflictError("article or question already exists")
				}
			}
		}
		r.logger.Error("Failed to create article from question",
			zap.Error(err),
			zap.String("learningMapID", lm.ID().String()),
			zap.String("articleID", article.ID().String()),
			zap.String("questionID", question.ID().String()),
		)
		return fmt.Errorf("failed to create article from question: %w", err)
	}

	r.logger.Info("Created article from question",
		zap.String("learningMapID", lm.ID().String()),
		zap.String("articleID", article.ID().String()),
		zap.String("questionID", question.ID().String()),
	)

	return nil
}

// Delete removes a learning map together with its articles and questions
func (r *LearningMapRepository) Delete(ctx context.Context, id aggregates.LearningMapID) error {
	lm, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var deleteRequests []types.WriteRequest
	for _, article := range lm.Articles() {
		deleteRequests = append(deleteRequests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
					"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ARTICLE#%s", article.ID().String())},
				},
			},
		})
	}
	for _, question := range lm.Questions() {
		deleteRequests = append(deleteRequests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
					"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("QUESTION#%s", question.ID().String())},
				},
			},
		})
	}
	deleteRequests = append(deleteRequests, types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", lm.UserID())},
				"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
			},
		},
	})

	for i := 0; i < len(deleteRequests); i += 25 {
		end := i + 25
		if end > len(deleteRequests) {
			end = len(deleteRequests)
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				r.tableName: deleteRequests[i:end],
			},
		}

		if _, err := r.client.BatchWriteItem(ctx, input); err != nil {
			return fmt.Errorf("failed to delete learning map items: %w", err)
		}
	}

	return nil
}
