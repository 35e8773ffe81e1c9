package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when the resource is locked by another owner
var ErrLockHeld = errors.New("lock already held")

// DistributedLock serializes structural writes through DynamoDB conditional
// puts. The ask-question flow locks per learning map so two concurrent
// questions cannot both claim the same child slot.
type DistributedLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// LockRecord represents a lock record in DynamoDB
type LockRecord struct {
	PK         string `dynamodbav:"PK"` // LOCK#<resource_name>
	SK         string `dynamodbav:"SK"` // LOCK
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"` // RFC3339 timestamp
	ExpiresAt  string `dynamodbav:"ExpiresAt"`  // RFC3339 timestamp
	TTL        int64  `dynamodbav:"TTL"`
}

// NewDistributedLock creates a new distributed lock instance
func NewDistributedLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// AcquireLock attempts to acquire a lock for the resource. An expired lock
// left by a crashed owner is taken over.
func (dl *DistributedLock) AcquireLock(ctx context.Context, resourceName, ownerID string, lockDuration time.Duration) (*Lock, error) {
	lockID := fmt.Sprintf("%s_%d", ownerID, time.Now().UnixNano())
	now := time.Now()
	expiresAt := now.Add(lockDuration)

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#%s", resourceName)},
		"SK":         &types.AttributeValueMemberS{Value: "LOCK"},
		"LockID":     &types.AttributeValueMemberS{Value: lockID},
		"Owner":      &types.AttributeValueMemberS{Value: ownerID},
		"AcquiredAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		"ExpiresAt":  &types.AttributeValueMemberS{Value: expiresAt.Format(time.RFC3339)},
		"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())},
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(dl.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	}

	_, err := dl.client.PutItem(ctx, input)
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Debug("Lock contention",
				zap.String("resource", resourceName),
				zap.String("owner", ownerID),
			)
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, resourceName)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("resource", resourceName),
		zap.String("lock_id", lockID),
		zap.String("owner", ownerID),
		zap.Duration("duration", lockDuration),
	)

	return &Lock{
		distributedLock: dl,
		resourceName:    resourceName,
		lockID:          lockID,
		ownerID:         ownerID,
		expiresAt:       expiresAt,
	}, nil
}

// TryAcquireLock retries contended acquisitions with backoff until timeout
func (dl *DistributedLock) TryAcquireLock(ctx context.Context, resourceName, ownerID string, lockDuration, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	retryInterval := 100 * time.Millisecond

	for time.Now().Before(deadline) {
		lock, err := dl.AcquireLock(ctx, resourceName, ownerID, lockDuration)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}

	return nil, fmt.Errorf("timeout acquiring lock for resource: %s", resourceName)
}

// ReleaseLock releases the specified lock. Releasing a lock that expired
// and was taken over by another owner is a no-op.
func (dl *DistributedLock) ReleaseLock(ctx context.Context, resourceName, lockID, ownerID string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(dl.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("LOCK#%s", resourceName)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND Owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: ownerID},
		},
	}

	_, err := dl.client.DeleteItem(ctx, input)
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			dl.logger.Warn("Lock already released or reassigned",
				zap.String("resource", resourceName),
				zap.String("lock_id", lockID),
				zap.String("owner", ownerID),
			)
			return nil
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}

	dl.logger.Debug("Lock released",
		zap.String("resource", resourceName),
		zap.String("lock_id", lockID),
	)

	return nil
}

// Lock represents an acquired distributed lock
type Lock struct {
	distributedLock *DistributedLock
	resourceName    string
	lockID          string
	ownerID         string
	expiresAt       time.Time
}

// Release releases the lock
func (l *Lock) Release(ctx context.Context) error {
	return l.distributedLock.ReleaseLock(ctx, l.resourceName, l.lockID, l.ownerID)
}

// IsExpired checks if the lock has expired
func (l *Lock) IsExpired() bool {
	return time.Now().After(l.expiresAt)
}
