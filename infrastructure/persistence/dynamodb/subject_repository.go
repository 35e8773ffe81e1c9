package dynamodb

import (
	"context"
	"fmt"
	"time"

	"learnmap-backend/domain/core/aggregates"
	pkgerrors "learnmap-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SubjectRepository implements the SubjectRepository interface using DynamoDB
type SubjectRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewSubjectRepository creates a new SubjectRepository
func NewSubjectRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// subjectItem represents the DynamoDB item structure for a subject
type subjectItem struct {
	PK          string `dynamodbav:"PK"`     // USER#<user_id>
	SK          string `dynamodbav:"SK"`     // SUBJECT#<subject_id>
	GSI1PK      string `dynamodbav:"GSI1PK"` // SUBJECTID#<subject_id>
	GSI1SK      string `dynamodbav:"GSI1SK"` // Always "METADATA"
	EntityType  string `dynamodbav:"EntityType"`
	SubjectID   string `dynamodbav:"SubjectID"`
	UserID      string `dynamodbav:"UserID"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description,omitempty"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
}

// Save persists a subject to DynamoDB
func (r *SubjectRepository) Save(ctx context.Context, subject *aggregates.Subject) error {
	item := subjectItem{
		PK:          fmt.Sprintf("USER#%s", subject.UserID()),
		SK:          fmt.Sprintf("SUBJECT#%s", subject.ID().String()),
		GSI1PK:      fmt.Sprintf("SUBJECTID#%s", subject.ID().String()),
		GSI1SK:      "METADATA",
		EntityType:  "SUBJECT",
		SubjectID:   subject.ID().String(),
		UserID:      subject.UserID(),
		Title:       subject.Title(),
		Description: subject.Description(),
		CreatedAt:   subject.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt:   subject.UpdatedAt().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal subject: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save subject to DynamoDB",
			zap.Error(err),
			zap.String("subjectID", subject.ID().String()),
		)
		return fmt.Errorf("failed to save subject: %w", err)
	}

	return nil
}

// GetByID retrieves a subject by its ID
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*aggregates.Subject, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("SUBJECTID#%s", id)},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("subject not found: %s", id))
	}

	var item subjectItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subject: %w", err)
	}

	return itemToSubject(item)
}

// ListByUser retrieves all subjects owned by a user
func (r *SubjectRepository) ListByUser(ctx context.Context, userID string) ([]*aggregates.Subject, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", userID))).
		And(expression.Key("SK").BeginsWith("SUBJECT#"))
	filterExpr := expression.Name("EntityType").Equal(expression.Value("SUBJECT"))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyExpr).
		WithFilter(filterExpr).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}

	subjects := make([]*aggregates.Subject, 0, len(result.Items))
	for _, raw := range result.Items {
		var item subjectItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("Failed to unmarshal subject item", zap.Error(err))
			continue
		}

		subject, err := itemToSubject(item)
		if err != nil {
			r.logger.Warn("Failed to reconstruct subject",
				zap.String("subjectID", item.SubjectID),
				zap.Error(err),
			)
			continue
		}
		subjects = append(subjects, subject)
	}

	return subjects, nil
}

// Delete removes a subject
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	subject, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", subject.UserID())},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SUBJECT#%s", id)},
		},
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete subject: %w", err)
	}

	return nil
}

func itemToSubject(item subjectItem) (*aggregates.Subject, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored CreatedAt: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored UpdatedAt: %w", err)
	}

	return aggregates.ReconstructSubject(
		item.SubjectID,
		item.UserID,
		item.Title,
		item.Description,
		createdAt,
		updatedAt,
	)
}
