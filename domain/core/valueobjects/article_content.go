package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"learnmap-backend/domain/config"
	pkgerrors "learnmap-backend/pkg/errors"
)

// ArticleContent is a value object holding the generated body of an article
// together with the insights derived from it. An article starts life with
// empty content (a placeholder created the instant a question is asked) and
// is filled in by the generation pipeline.
type ArticleContent struct {
	body      string
	summary   string
	takeaways []string
	tooltips  map[string]string
}

// EmptyArticleContent returns the placeholder content a new article carries
// until generation completes.
func EmptyArticleContent() ArticleContent {
	return ArticleContent{}
}

// NewArticleContent creates content with validation using default configuration
func NewArticleContent(body string) (ArticleContent, error) {
	return NewArticleContentWithConfig(body, config.DefaultDomainConfig())
}

// NewArticleContentWithConfig creates content with validation and configuration
func NewArticleContentWithConfig(body string, cfg *config.DomainConfig) (ArticleContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	body = strings.TrimSpace(body)

	if body == "" && !cfg.AllowEmptyContent {
		return ArticleContent{}, pkgerrors.NewValidationError("article body cannot be empty")
	}

	if utf8.RuneCountInString(body) > cfg.MaxContentLength {
		return ArticleContent{}, fmt.Errorf("article body exceeds maximum length of %d characters", cfg.MaxContentLength)
	}

	return ArticleContent{body: body}, nil
}

// Body returns the article body text
func (c ArticleContent) Body() string {
	return c.body
}

// Summary returns the derived short summary, empty until computed
func (c ArticleContent) Summary() string {
	return c.summary
}

// Takeaways returns the derived bullet strings, empty until computed
func (c ArticleContent) Takeaways() []string {
	takeaways := make([]string, len(c.takeaways))
	copy(takeaways, c.takeaways)
	return takeaways
}

// Tooltips returns the derived term explanations, empty until computed
func (c ArticleContent) Tooltips() map[string]string {
	tooltips := make(map[string]string, len(c.tooltips))
	for k, v := range c.tooltips {
		tooltips[k] = v
	}
	return tooltips
}

// WithInsights returns a copy of the content carrying derived insights.
// Insights are computed from the body independently of the body fill, so
// they attach without touching the body itself.
func (c ArticleContent) WithInsights(summary string, takeaways []string, tooltips map[string]string) (ArticleContent, error) {
	cfg := config.DefaultDomainConfig()

	if utf8.RuneCountInString(summary) > cfg.MaxSummaryLength {
		return ArticleContent{}, fmt.Errorf("summary exceeds maximum length of %d characters", cfg.MaxSummaryLength)
	}
	if len(takeaways) > cfg.MaxTakeaways {
		return ArticleContent{}, fmt.Errorf("takeaway count exceeds maximum of %d", cfg.MaxTakeaways)
	}
	if len(tooltips) > cfg.MaxTooltips {
		return ArticleContent{}, fmt.Errorf("tooltip count exceeds maximum of %d", cfg.MaxTooltips)
	}

	next := ArticleContent{
		body:      c.body,
		summary:   strings.TrimSpace(summary),
		takeaways: make([]string, 0, len(takeaways)),
		tooltips:  make(map[string]string, len(tooltips)),
	}
	for _, t := range takeaways {
		if t = strings.TrimSpace(t); t != "" {
			next.takeaways = append(next.takeaways, t)
		}
	}
	for term, explanation := range tooltips {
		next.tooltips[term] = explanation
	}
	return next, nil
}

// ReconstructArticleContent rebuilds content from stored fields. Validation
// already happened before the fields were persisted.
func ReconstructArticleContent(body, summary string, takeaways []string, tooltips map[string]string) ArticleContent {
	return ArticleContent{
		body:      body,
		summary:   summary,
		takeaways: takeaways,
		tooltips:  tooltips,
	}
}

// IsEmpty checks if the article is still a pending placeholder
func (c ArticleContent) IsEmpty() bool {
	return c.body == ""
}

// HasInsights checks whether derived fields are populated
func (c ArticleContent) HasInsights() bool {
	return c.summary != "" || len(c.takeaways) > 0 || len(c.tooltips) > 0
}

// Equals checks if two contents are equal, including derived fields
func (c ArticleContent) Equals(other ArticleContent) bool {
	if c.body != other.body || c.summary != other.summary {
		return false
	}
	if len(c.takeaways) != len(other.takeaways) {
		return false
	}
	for i, t := range c.takeaways {
		if other.takeaways[i] != t {
			return false
		}
	}
	if len(c.tooltips) != len(other.tooltips) {
		return false
	}
	for term, explanation := range c.tooltips {
		if other.tooltips[term] != explanation {
			return false
		}
	}
	return true
}

// WordCount returns the approximate word count of the body
func (c ArticleContent) WordCount() int {
	return len(strings.Fields(c.body))
}

// Excerpt returns a truncated excerpt of the body
func (c ArticleContent) Excerpt(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if utf8.RuneCountInString(c.body) <= maxLength {
		return c.body
	}
	runes := []rune(c.body)
	return string(runes[:maxLength-3]) + "..."
}
