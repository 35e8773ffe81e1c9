package validators

import (
	"strings"
	"unicode/utf8"

	"learnmap-backend/domain/core/entities"
	"learnmap-backend/domain/core/valueobjects"
	"learnmap-backend/pkg/errors"
)

// MapValidator validates article/question domain rules before they reach
// the aggregate, so handlers can reject bad input with field-level detail
type MapValidator struct {
	questionMaxLength int
	contentMaxLength  int
	summaryMaxLength  int
	maxTakeaways      int
}

// NewMapValidator creates a new validator with default rules
func NewMapValidator() *MapValidator {
	return &MapValidator{
		questionMaxLength: 1000,
		contentMaxLength:  100000,
		summaryMaxLength:  2000,
		maxTakeaways:      20,
	}
}

// ValidateQuestionText validates the text of a user-asked question
func (v *MapValidator) ValidateQuestionText(text string, isImplicit bool) error {
	validationErrors := errors.NewValidationErrors()

	text = strings.TrimSpace(text)
	if text == "" && !isImplicit {
		validationErrors.AddError(errors.ErrQuestionTextRequired)
	}
	if utf8.RuneCountInString(text) > v.questionMaxLength {
		validationErrors.Add("text", "question text exceeds maximum length")
	}
	if strings.Contains(text, "<script>") || strings.Contains(text, "javascript:") {
		validationErrors.AddError(errors.NewDomainError(
			errors.DomainValidationError,
			"MALICIOUS_CONTENT",
			"Question contains potentially malicious code",
		).WithDetail("field", "text"))
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

// ValidateArticleContent validates a generated article body before it is
// applied to the entity
func (v *MapValidator) ValidateArticleContent(content valueobjects.ArticleContent) error {
	validationErrors := errors.NewValidationErrors()

	if utf8.RuneCountInString(content.Body()) > v.contentMaxLength {
		validationErrors.AddError(errors.ErrArticleContentTooLong.
			WithDetail("actual_length", utf8.RuneCountInString(content.Body())).
			WithDetail("max_length", v.contentMaxLength))
	}
	if utf8.RuneCountInString(content.Summary()) > v.summaryMaxLength {
		validationErrors.Add("summary", "summary exceeds maximum length")
	}
	if len(content.Takeaways()) > v.maxTakeaways {
		validationErrors.Add("takeaways", "too many takeaways")
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

// ValidateQuestionLink validates the structural relationship of a new
// question against the articles already in the map
func (v *MapValidator) ValidateQuestionLink(
	parentID, childID valueobjects.ArticleID,
	existing []*entities.Question,
) error {
	validationErrors := errors.NewValidationErrors()

	if parentID.IsZero() {
		validationErrors.Add("parent_article_id", "parent article is required")
	}
	if childID.IsZero() {
		validationErrors.Add("child_article_id", "child article is required")
	}
	if !parentID.IsZero() && parentID.Equals(childID) {
		validationErrors.AddError(errors.ErrSelfReferentialQuestion)
	}

	for _, q := range existing {
		if q.ChildArticleID().Equals(childID) {
			validationErrors.AddError(errors.ErrDuplicateChildArticle.
				WithDetail("child_article_id", childID.String()))
			break
		}
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}
