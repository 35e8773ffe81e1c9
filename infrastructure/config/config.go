package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - for user-level queries
	GSI2IndexName string // GSI2 - for direct NodeID lookups
	EventBusName  string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string
	ColdStartTimeout   int // milliseconds

	// WebSocket configuration
	WebSocketEndpoint string
	ConnectionsTable  string

	// Content generation
	OpenAIAPIKey      string
	OpenAIModel       string
	AsyncGeneration   bool
	GenerationTimeout int // seconds

	// Layout
	LayoutDirection string // "TB" or "LR"

	// Caching
	RedisAddress string // empty selects the in-process cache

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "learnmap")),
		IndexName:     getEnv("INDEX_NAME", "GSI1"),      // Entity ID lookups
		GSI2IndexName: getEnv("GSI2_INDEX_NAME", "GSI2"), // Subject and child-article lookups
		EventBusName:  getEnv("EVENT_BUS_NAME", "learnmap-events"),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),
		ColdStartTimeout:   getEnvInt("COLD_START_TIMEOUT", 3000),

		// WebSocket configuration
		WebSocketEndpoint: getEnv("WEBSOCKET_ENDPOINT", ""),
		ConnectionsTable:  getEnv("CONNECTIONS_TABLE", "learnmap-connections"),

		// Content generation
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", ""),
		AsyncGeneration:   getEnvBool("ASYNC_GENERATION", true),
		GenerationTimeout: getEnvInt("GENERATION_TIMEOUT", 120),

		// Layout
		LayoutDirection: getEnv("LAYOUT_DIRECTION", "TB"),

		// Caching
		RedisAddress: getEnv("REDIS_ADDRESS", ""),

		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "learnmap-backend"),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production")
		}
	}

	if c.LayoutDirection != "TB" && c.LayoutDirection != "LR" {
		return fmt.Errorf("LAYOUT_DIRECTION must be TB or LR, got %q", c.LayoutDirection)
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
