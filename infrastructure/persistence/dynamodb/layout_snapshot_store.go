package dynamodb

import (
	"context"
	"fmt"
	"time"

	"learnmap-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// LayoutSnapshotStore persists per-map layout snapshots as a single item.
// Snapshots are small (one entry per rendered node) and always written whole,
// so one item per map keeps reads and writes to a single call.
type LayoutSnapshotStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewLayoutSnapshotStore creates a new LayoutSnapshotStore
func NewLayoutSnapshotStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *LayoutSnapshotStore {
	return &LayoutSnapshotStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// snapshotItem represents the DynamoDB item structure for a layout snapshot
type snapshotItem struct {
	PK            string                `dynamodbav:"PK"` // MAP#<learning_map_id>
	SK            string                `dynamodbav:"SK"` // Always "LAYOUT"
	EntityType    string                `dynamodbav:"EntityType"`
	LearningMapID string                `dynamodbav:"LearningMapID"`
	Nodes         []ports.SnapshotNode  `dynamodbav:"Nodes"`
	Edges         []ports.SnapshotEdge  `dynamodbav:"Edges"`
	NodeHeights   map[string]float64    `dynamodbav:"NodeHeights,omitempty"`
	SavedAt       string                `dynamodbav:"SavedAt"`
}

// Save stores the snapshot for a learning map, replacing any previous one
func (s *LayoutSnapshotStore) Save(ctx context.Context, snapshot *ports.LayoutSnapshot) error {
	item := snapshotItem{
		PK:            fmt.Sprintf("MAP#%s", snapshot.LearningMapID),
		SK:            "LAYOUT",
		EntityType:    "LAYOUT_SNAPSHOT",
		LearningMapID: snapshot.LearningMapID,
		Nodes:         snapshot.Nodes,
		Edges:         snapshot.Edges,
		NodeHeights:   snapshot.NodeHeights,
		SavedAt:       snapshot.SavedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal layout snapshot: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		s.logger.Error("Failed to save layout snapshot",
			zap.Error(err),
			zap.String("learningMapID", snapshot.LearningMapID),
		)
		return fmt.Errorf("failed to save layout snapshot: %w", err)
	}

	s.logger.Debug("Saved layout snapshot",
		zap.String("learningMapID", snapshot.LearningMapID),
		zap.Int("nodeCount", len(snapshot.Nodes)),
	)

	return nil
}

// Get retrieves the snapshot for a learning map, nil when none exists
func (s *LayoutSnapshotStore) Get(ctx context.Context, learningMapID string) (*ports.LayoutSnapshot, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", learningMapID)},
			"SK": &types.AttributeValueMemberS{Value: "LAYOUT"},
		},
	}

	result, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get layout snapshot: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout snapshot: %w", err)
	}

	savedAt, err := time.Parse(time.RFC3339Nano, item.SavedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored SavedAt: %w", err)
	}

	return &ports.LayoutSnapshot{
		LearningMapID: item.LearningMapID,
		Nodes:         item.Nodes,
		Edges:         item.Edges,
		NodeHeights:   item.NodeHeights,
		SavedAt:       savedAt,
	}, nil
}

// Delete removes the snapshot for a learning map
func (s *LayoutSnapshotStore) Delete(ctx context.Context, learningMapID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", learningMapID)},
			"SK": &types.AttributeValueMemberS{Value: "LAYOUT"},
		},
	}

	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete layout snapshot: %w", err)
	}

	return nil
}
