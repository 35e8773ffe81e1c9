package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// ArticleID is a value object representing a unique article identifier
// Value objects are immutable and have no identity beyond their value
type ArticleID struct {
	value string
}

// NewArticleID creates a new random ArticleID
func NewArticleID() ArticleID {
	return ArticleID{value: uuid.New().String()}
}

// NewArticleIDFromString creates an ArticleID from an existing string
func NewArticleIDFromString(id string) (ArticleID, error) {
	if id == "" {
		return ArticleID{}, errors.New("article ID cannot be empty")
	}
	if !isValidUUID(id) {
		return ArticleID{}, errors.New("article ID must be a valid UUID")
	}
	return ArticleID{value: id}, nil
}

// String returns the string representation of the ArticleID
func (id ArticleID) String() string {
	return id.value
}

// Equals checks if two ArticleIDs are equal
func (id ArticleID) Equals(other ArticleID) bool {
	return id.value == other.value
}

// IsZero checks if the ArticleID is the zero value
func (id ArticleID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ArticleID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ArticleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ArticleID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// isValidUUID validates if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
