// Package main implements the WebSocket connection Lambda handler.
// This handler manages WebSocket connection establishment with JWT authentication.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"learnmap-backend/pkg/auth"
)

// Global clients for Lambda performance optimization
var (
	dynamoClient *dynamodb.Client
	validator    *auth.JWTValidator
)

// Connection represents a WebSocket connection record
type Connection struct {
	ConnectionID  string    `json:"connection_id"`
	UserID        string    `json:"user_id"`
	LearningMapID string    `json:"learning_map_id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastPingAt    time.Time `json:"last_ping_at"`
	Endpoint      string    `json:"endpoint"`
	TTL           int64     `json:"ttl"`
}

func init() {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	dynamoClient = dynamodb.NewFromConfig(cfg)

	signingMethod := os.Getenv("JWT_SIGNING_METHOD")
	if signingMethod == "" {
		signingMethod = "HS256"
	}
	validator, err = auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: signingMethod,
		SecretKey:     os.Getenv("JWT_SECRET"),
		PublicKey:     os.Getenv("JWT_PUBLIC_KEY"),
		Issuer:        "learnmap-backend",
		Audience:      []string{"learnmap-api"},
	})
	if err != nil {
		log.Fatalf("Failed to initialize JWT validator: %v", err)
	}

	log.Println("WebSocket connect handler initialized")
}

// validateToken validates the JWT carried in the query string and
// returns the authenticated user ID
func validateToken(token string) (string, error) {
	if token == "" {
		return "", auth.ErrMissingToken
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		return "", err
	}

	return claims.UserID, nil
}

// storeConnection saves the connection information to DynamoDB
func storeConnection(ctx context.Context, conn Connection) error {
	tableName := os.Getenv("CONNECTIONS_TABLE_NAME")
	if tableName == "" {
		tableName = "Learnmap-Connections"
	}

	// Set TTL to 24 hours from now
	conn.TTL = time.Now().Add(24 * time.Hour).Unix()

	// Composite key structure: PK=CONNECTION#<id>, SK=METADATA.
	// GSI1 indexes connections by learning map so ws-send-message can
	// fan out a diagram update to every viewer of that map.
	item := map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: fmt.Sprintf("CONNECTION#%s", conn.ConnectionID)},
		"SK":            &types.AttributeValueMemberS{Value: "METADATA"},
		"ConnectionID":  &types.AttributeValueMemberS{Value: conn.ConnectionID},
		"UserID":        &types.AttributeValueMemberS{Value: conn.UserID},
		"LearningMapID": &types.AttributeValueMemberS{Value: conn.LearningMapID},
		"GSI1PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", conn.LearningMapID)},
		"GSI1SK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("CONNECTION#%s", conn.ConnectionID)},
		"ConnectedAt":   &types.AttributeValueMemberS{Value: conn.ConnectedAt.Format(time.RFC3339)},
		"LastPingAt":    &types.AttributeValueMemberS{Value: conn.LastPingAt.Format(time.RFC3339)},
		"Endpoint":      &types.AttributeValueMemberS{Value: conn.Endpoint},
		"TTL":           &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", conn.TTL)},
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	}

	_, err := dynamoClient.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to store connection: %w", err)
	}

	log.Printf("Stored connection %s for user %s on map %s", conn.ConnectionID, conn.UserID, conn.LearningMapID)
	return nil
}

// handler processes WebSocket connection requests
func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Printf("WebSocket connect request from connection: %s", request.RequestContext.ConnectionID)

	// Extract token from query parameters
	token := request.QueryStringParameters["token"]
	if token == "" {
		// Try Authorization header as fallback
		if authHeader := request.Headers["Authorization"]; authHeader != "" {
			token = authHeader
		}
	}

	// Validate token and extract user ID
	userID, err := validateToken(token)
	if err != nil {
		log.Printf("Authentication failed: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error": "unauthorized"}`,
		}, nil
	}

	mapID := request.QueryStringParameters["mapId"]
	if mapID == "" {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       `{"error": "mapId query parameter is required"}`,
		}, nil
	}

	// Create connection record
	connection := Connection{
		ConnectionID:  request.RequestContext.ConnectionID,
		UserID:        userID,
		LearningMapID: mapID,
		ConnectedAt:   time.Now(),
		LastPingAt:    time.Now(),
		Endpoint:      fmt.Sprintf("%s/%s", request.RequestContext.DomainName, request.RequestContext.Stage),
	}

	// Store connection in DynamoDB
	if err := storeConnection(ctx, connection); err != nil {
		log.Printf("Failed to store connection: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error": "internal server error"}`,
		}, nil
	}

	// Send welcome message
	welcomeMsg := map[string]interface{}{
		"type":         "connection_established",
		"connectionId": connection.ConnectionID,
		"userId":       userID,
		"mapId":        mapID,
		"timestamp":    time.Now().Unix(),
	}

	welcomeJSON, _ := json.Marshal(welcomeMsg)

	log.Printf("WebSocket connection established for user %s", userID)

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(welcomeJSON),
	}, nil
}

func main() {
	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting WebSocket connect Lambda")
		lambda.Start(handler)
	} else {
		// Local testing mode
		log.Println("Running in local test mode")

		testRequest := events.APIGatewayWebsocketProxyRequest{
			RequestContext: events.APIGatewayWebsocketProxyRequestContext{
				ConnectionID: "test-connection-123",
				DomainName:   "test.execute-api.us-east-1.amazonaws.com",
				Stage:        "dev",
			},
			QueryStringParameters: map[string]string{
				"token": os.Getenv("TEST_TOKEN"),
				"mapId": "test-map-123",
			},
		}

		response, err := handler(context.Background(), testRequest)
		if err != nil {
			log.Fatalf("Test request processing failed: %v", err)
		}

		log.Printf("Test response: %+v", response)
	}
}
