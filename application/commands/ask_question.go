package commands

import (
	"errors"

	"learnmap-backend/domain/core/entities"
)

// AskQuestionCommand attaches a question to an article and creates the
// empty child article that will answer it. The pair is persisted
// transactionally: a question without its article, or the reverse, must
// never exist.
type AskQuestionCommand struct {
	UserID          string `json:"user_id" validate:"required"`
	LearningMapID   string `json:"learning_map_id" validate:"required"`
	ParentArticleID string `json:"parent_article_id" validate:"required"`
	Text            string `json:"text" validate:"required,min=1,max=500"`
	IsImplicit      bool   `json:"is_implicit"`
}

// Validate validates the command
func (cmd AskQuestionCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.LearningMapID == "" {
		return errors.New("learning map ID is required")
	}
	if cmd.ParentArticleID == "" {
		return errors.New("parent article ID is required")
	}
	if cmd.Text == "" && !cmd.IsImplicit {
		return errors.New("question text is required")
	}
	return nil
}

// AskQuestionResult carries the created question and its child article
type AskQuestionResult struct {
	Question *entities.Question
	Article  *entities.Article
}
