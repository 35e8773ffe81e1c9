package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DistributedRateLimiter keeps its counters in DynamoDB so the budget
// survives Lambda cold starts and is shared across concurrent instances.
// Without a client it fails open, which keeps local development unthrottled.
type DistributedRateLimiter struct {
	client    *dynamodb.Client
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
}

// RateLimitEntry represents a rate limit entry in DynamoDB
type RateLimitEntry struct {
	PK        string    `dynamodbav:"PK"`
	Count     int       `dynamodbav:"Count"`
	WindowEnd time.Time `dynamodbav:"WindowEnd"`
	TTL       int64     `dynamodbav:"TTL"`
}

// NewDistributedRateLimiter creates a distributed rate limiter
func NewDistributedRateLimiter(client *dynamodb.Client, tableName string, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
	}
}

// Allow checks if a request is allowed under the rate limit. The counter
// increment is a single conditional update so concurrent requests cannot
// both slip under the limit.
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	now := time.Now()
	windowStart := now.Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	pk := fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix())

	update := &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
		},
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, WindowEnd = :window_end, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":incr":       &types.AttributeValueMemberN{Value: "1"},
			":limit":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", r.limit)},
			":window_end": &types.AttributeValueMemberS{Value: windowEnd.Format(time.RFC3339)},
			":ttl":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", windowEnd.Add(time.Hour).Unix())},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	result, err := r.client.UpdateItem(ctx, update)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		// Infrastructure errors fail open rather than blocking traffic
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	var entry RateLimitEntry
	if err := attributevalue.UnmarshalMap(result.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry (failing open): %w", err)
	}

	return entry.Count <= r.limit, nil
}

// GetRemaining returns the number of requests remaining in the current window
func (r *DistributedRateLimiter) GetRemaining(ctx context.Context, key string) (int, time.Duration, error) {
	if r.client == nil {
		return r.limit, r.window, nil
	}

	now := time.Now()
	windowStart := now.Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	pk := fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix())

	get := &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
		},
	}

	result, err := r.client.GetItem(ctx, get)
	if err != nil || result.Item == nil {
		return r.limit, time.Until(windowEnd), nil
	}

	var entry RateLimitEntry
	if err := attributevalue.UnmarshalMap(result.Item, &entry); err != nil {
		return r.limit, time.Until(windowEnd), fmt.Errorf("failed to parse rate limit entry: %w", err)
	}

	remaining := r.limit - entry.Count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, time.Until(entry.WindowEnd), nil
}

// Reset clears the rate limit for a given key
func (r *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}

	now := time.Now()
	windowStart := now.Truncate(r.window)
	pk := fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix())

	delete := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
		},
	}

	_, err := r.client.DeleteItem(ctx, delete)
	return err
}

// SetHeaders fills headers with the standard X-RateLimit values for key
func (r *DistributedRateLimiter) SetHeaders(ctx context.Context, key string, headers map[string]string) error {
	remaining, resetIn, err := r.GetRemaining(ctx, key)
	if err != nil {
		return err
	}

	headers["X-RateLimit-Limit"] = fmt.Sprintf("%d", r.limit)
	headers["X-RateLimit-Remaining"] = fmt.Sprintf("%d", remaining)
	headers["X-RateLimit-Reset"] = fmt.Sprintf("%d", time.Now().Add(resetIn).Unix())

	return nil
}
