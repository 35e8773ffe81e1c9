package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Learning map constraints
	MaxArticlesPerMap int
	MaxQuestionsPerMap int
	DefaultMapName    string

	// Article constraints
	MaxContentLength  int
	MaxSummaryLength  int
	MaxTakeaways      int
	MaxTooltips       int
	MaxQuestionLength int

	// Tree layout constants
	DefaultNodeHeight float64
	HorizontalSpacing float64
	VerticalSpacing   float64
	OriginX           float64
	OriginY           float64

	// Staging constants for the rendered diagram
	OffscreenX      float64
	OffscreenY      float64
	StageOffsetX    float64
	StageOffsetY    float64

	// Time constraints
	GenerationTimeout time.Duration
	LayoutTimeout     time.Duration
	SessionTimeout    time.Duration

	// Validation settings
	AllowEmptyContent     bool
	AllowImplicitQuestions bool

	// Feature flags
	EnableInsightDerivation bool
	EnableLayoutSnapshots   bool
	EnableRealTimeSync      bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Learning map constraints
		MaxArticlesPerMap:  10000,
		MaxQuestionsPerMap: 10000,
		DefaultMapName:     "Untitled Map",

		// Article constraints
		MaxContentLength:  100000,
		MaxSummaryLength:  2000,
		MaxTakeaways:      20,
		MaxTooltips:       50,
		MaxQuestionLength: 1000,

		// Tree layout constants
		DefaultNodeHeight: 150,
		HorizontalSpacing: 400,
		VerticalSpacing:   60,
		OriginX:           100,
		OriginY:           100,

		// Staging constants
		OffscreenX:   -9999,
		OffscreenY:   -9999,
		StageOffsetX: 200,
		StageOffsetY: 100,

		// Time constraints
		GenerationTimeout: 2 * time.Minute,
		LayoutTimeout:     30 * time.Second,
		SessionTimeout:    24 * time.Hour,

		// Validation settings
		AllowEmptyContent:      true, // articles are placeholders until generation completes
		AllowImplicitQuestions: true,

		// Feature flags
		EnableInsightDerivation: true,
		EnableLayoutSnapshots:   true,
		EnableRealTimeSync:      true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxArticlesPerMap = 5000
	config.MaxQuestionsPerMap = 5000
	config.MaxContentLength = 50000
	config.GenerationTimeout = 90 * time.Second

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxArticlesPerMap = 100000
	config.MaxQuestionsPerMap = 100000
	config.LayoutTimeout = 5 * time.Minute

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	return nil
}
