// Package generation implements the content-generation port against the
// OpenAI chat completion API.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"learnmap-backend/application/ports"
	pkgerrors "learnmap-backend/pkg/errors"
	"learnmap-backend/pkg/observability"
)

const (
	defaultModel = openai.GPT4oMini

	articleSystemPrompt = "You are a teacher writing a short, clear explanatory article. " +
		"Answer the learner's question directly, building on the context they already read. " +
		"Write plain prose, no headings."

	insightsSystemPrompt = "You extract study aids from an article. " +
		"Respond with JSON only: {\"summary\": string, \"takeaways\": [string], \"tooltips\": {term: definition}}."
)

// OpenAIGenerator calls the OpenAI API to write article bodies and derive
// insights over them.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewOpenAIGenerator creates a generator. An empty model selects the
// default.
func NewOpenAIGenerator(apiKey, model string, logger *zap.Logger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, pkgerrors.NewValidationError("openai api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// WithTracer enables X-Ray subsegments around completion calls
func (g *OpenAIGenerator) WithTracer(tracer *observability.Tracer) *OpenAIGenerator {
	g.tracer = tracer
	return g
}

// GenerateArticle writes the body text answering a question in the context
// of its parent article.
func (g *OpenAIGenerator) GenerateArticle(ctx context.Context, req ports.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.QuestionText) == "" {
		return "", pkgerrors.NewValidationError("question text is required")
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Subject: %s\n", req.SubjectTitle)
	if req.ParentContent != "" {
		fmt.Fprintf(&prompt, "The learner just read:\n%s\n\n", req.ParentContent)
	}
	fmt.Fprintf(&prompt, "Their question: %s", req.QuestionText)

	text, err := g.complete(ctx, articleSystemPrompt, prompt.String())
	if err != nil {
		return "", err
	}
	return text, nil
}

// DeriveInsights produces summary, takeaways, and tooltips for a body.
func (g *OpenAIGenerator) DeriveInsights(ctx context.Context, body string) (*ports.Insights, error) {
	if strings.TrimSpace(body) == "" {
		return nil, pkgerrors.NewValidationError("article body is required")
	}

	raw, err := g.complete(ctx, insightsSystemPrompt, body)
	if err != nil {
		return nil, err
	}

	var insights ports.Insights
	if err := json.Unmarshal([]byte(extractJSON(raw)), &insights); err != nil {
		g.logger.Warn("model returned non-JSON insights", zap.Error(err))
		return nil, pkgerrors.NewGenerationError(fmt.Errorf("parse insights: %w", err))
	}
	return &insights, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	if g.tracer != nil {
		var text string
		err := g.tracer.TraceFunction(ctx, "openai.complete", func(ctx context.Context) error {
			g.tracer.AddAnnotation(ctx, "model", g.model)
			var callErr error
			text, callErr = g.completeCall(ctx, system, user)
			return callErr
		})
		return text, err
	}
	return g.completeCall(ctx, system, user)
}

func (g *OpenAIGenerator) completeCall(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		g.logger.Error("openai call failed", zap.Error(err))
		return "", pkgerrors.NewGenerationError(err)
	}
	if len(resp.Choices) == 0 {
		return "", pkgerrors.NewGenerationError(fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON strips markdown code fences models sometimes wrap JSON in.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
