package dynamodb

import (
	"context"
	"fmt"
	"sort"
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

// QuestionRepository implements the QuestionRepository interface using DynamoDB
type QuestionRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewQuestionRepository creates a new QuestionRepository
func NewQuestionRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *QuestionRepository {
	return &QuestionRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// questionItem represents the DynamoDB item structure for a question
type questionItem struct {
	PK              string `dynamodbav:"PK"`     // MAP#<learning_map_id>
	SK              string `dynamodbav:"SK"`     // QUESTION#<question_id>
	GSI1PK          string `dynamodbav:"GSI1PK"` // QUESTIONID#<question_id>
	GSI1SK          string `dynamodbav:"GSI1SK"` // Always "METADATA"
	GSI2PK          string `dynamodbav:"GSI2PK"` // CHILD#<child_article_id>, enforces one parent per article
	GSI2SK          string `dynamodbav:"GSI2SK"`
	EntityType      string `dynamodbav:"EntityType"`
	QuestionID      string `dynamodbav:"QuestionID"`
	LearningMapID   string `dynamodbav:"LearningMapID"`
	ParentArticleID string `dynamodbav:"ParentArticleID"`
	ChildArticleID  string `dynamodbav:"ChildArticleID"`
	QuestionText    string `dynamodbav:"QuestionText"`
	IsImplicit      bool   `dynamodbav:"IsImplicit"`
	CreatedAt       string `dynamodbav:"CreatedAt"`
}

func questionToItem(question *entities.Question) questionItem {
	return questionItem{
		PK:              fmt.Sprintf("MAP#%s", question.LearningMapID()),
		SK:              fmt.Sprintf("QUESTION#%s", question.ID().String()),
		GSI1PK:          fmt.Sprintf("QUESTIONID#%s", question.ID().String()),
		GSI1SK:          "METADATA",
		GSI2PK:          fmt.Sprintf("CHILD#%s", question.ChildArticleID().String()),
		GSI2SK:          "QUESTION",
		EntityType:      "QUESTION",
		QuestionID:      question.ID().String(),
		LearningMapID:   question.LearningMapID(),
		ParentArticleID: question.ParentArticleID().String(),
		ChildArticleID:  question.ChildArticleID().String(),
		QuestionText:    question.Text(),
		IsImplicit:      question.IsImplicit(),
		CreatedAt:       question.CreatedAt().Format(time.RFC3339Nano),
	}
}

func itemToQuestion(item questionItem) (*entities.Question, error) {
	id, err := valueobjects.NewQuestionIDFromString(item.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored question ID: %w", err)
	}
	parentID, err := valueobjects.NewArticleIDFromString(item.ParentArticleID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored parent article ID: %w", err)
	}
	childID, err := valueobjects.NewArticleIDFromString(item.ChildArticleID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored child article ID: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored CreatedAt: %w", err)
	}

	return entities.ReconstructQuestion(
		id,
		item.LearningMapID,
		parentID,
		childID,
		item.QuestionText,
		item.IsImplicit,
		createdAt,
	)
}

// PrepareSaveItem prepares a question put for a transactional write
func (r *QuestionRepository) PrepareSaveItem(question *entities.Question) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(questionToItem(question))
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal question: %w", err)
	}

	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}, nil
}

// Save persists a question to DynamoDB
func (r *QuestionRepository) Save(ctx context.Context, question *entities.Question) error {
	av, err := attributevalue.MarshalMap(questionToItem(question))
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save question to DynamoDB",
			zap.Error(err),
			zap.String("questionID", question.ID().String()),
		)
		return fmt.Errorf("failed to save question: %w", err)
	}

	return nil
}

// GetByID retrieves a question by its ID
func (r *QuestionRepository) GetByID(ctx context.Context, id valueobjects.QuestionID) (*entities.Question, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("QUESTIONID#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query question: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("question not found: %s", id.String()))
	}

	var item questionItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question: %w", err)
	}

	return itemToQuestion(item)
}

// ListByMap retrieves all questions for a learning map in creation order
func (r *QuestionRepository) ListByMap(ctx context.Context, learningMapID string) ([]*entities.Question, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", learningMapID)},
			":sk": &types.AttributeValueMemberS{Value: "QUESTION#"},
		},
	}

	var questions []*entities.Question
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query questions: %w", err)
		}

		for _, raw := range result.Items {
			var item questionItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal question item", zap.Error(err))
				continue
			}

			question, err := itemToQuestion(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct question",
					zap.String("questionID", item.QuestionID),
					zap.Error(err),
				)
				continue
			}
			questions = append(questions, question)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	// SK orders by question ID, not creation time
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].CreatedAt().Before(questions[j].CreatedAt())
	})

	return questions, nil
}

// Delete removes a question
func (r *QuestionRepository) Delete(ctx context.Context, id valueobjects.QuestionID) error {
	question, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", question.LearningMapID())},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("QUESTION#%s", id.String())},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	return nil
}
