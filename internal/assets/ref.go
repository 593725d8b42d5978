package assets

import (
	"errors"
	"fmt"
	"strings"
)

// refSeparator joins the asset and question components of a reference.
const refSeparator = ":"

var (
	// ErrInvalidQuestionKey indicates an empty key component or one containing
	// the reference separator.
	ErrInvalidQuestionKey = errors.New("assets: invalid question key")
)

// QuestionKey is the typed identity of a canonical question.
type QuestionKey struct {
	AssetID    string
	QuestionID string
}

// NewQuestionKey validates both components and returns a QuestionKey. The
// separator is rejected inside either component so the string encoding stays
// unambiguous.
func NewQuestionKey(assetID, questionID string) (QuestionKey, error) {
	assetID = strings.TrimSpace(assetID)
	questionID = strings.TrimSpace(questionID)
	if assetID == "" {
		return QuestionKey{}, fmt.Errorf("%w: empty asset id", ErrInvalidQuestionKey)
	}
	if questionID == "" {
		return QuestionKey{}, fmt.Errorf("%w: empty question id", ErrInvalidQuestionKey)
	}
	if strings.Contains(assetID, refSeparator) {
		return QuestionKey{}, fmt.Errorf("%w: asset id %q contains %q", ErrInvalidQuestionKey, assetID, refSeparator)
	}
	if strings.Contains(questionID, refSeparator) {
		return QuestionKey{}, fmt.Errorf("%w: question id %q contains %q", ErrInvalidQuestionKey, questionID, refSeparator)
	}
	return QuestionKey{AssetID: assetID, QuestionID: questionID}, nil
}

// Ref returns the string encoding "<assetId>:<questionId>" stored on desk
// records.
func (k QuestionKey) Ref() Reference {
	return Reference(k.AssetID + refSeparator + k.QuestionID)
}

// Reference is the stored string form of a QuestionKey. The empty string
// marks a desk record with no canonical origin.
type Reference string

// Decode splits the reference back into its key. ok is false for the empty
// string, a string without the separator, or a string with more than one
// separator; such references never match any canonical question.
func (r Reference) Decode() (QuestionKey, bool) {
	value := string(r)
	if value == "" {
		return QuestionKey{}, false
	}
	parts := strings.Split(value, refSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return QuestionKey{}, false
	}
	return QuestionKey{AssetID: parts[0], QuestionID: parts[1]}, true
}

// String exposes the raw reference value.
func (r Reference) String() string {
	return string(r)
}
