package assets

import (
	"context"
	"strings"
)

// DefaultSearchLimit caps search results when the caller supplies no limit.
const DefaultSearchLimit = 50

// SearchResult is one corpus search hit, flattened to carry both the
// question's identity and its shared fields.
type SearchResult struct {
	AssetID      string     `json:"asset_id"`
	QuestionID   string     `json:"question_id"`
	Question     string     `json:"question"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"correct_index"`
	Explanation  string     `json:"explanation,omitempty"`
	Difficulty   Difficulty `json:"difficulty,omitempty"`
}

// SearchLibrary scans canonical mcq assets in corpus order for questions
// whose text, any option, or explanation contains the query
// case-insensitively. Scanning stops as soon as limit results accumulate, so
// results follow corpus order rather than relevance. An empty query matches
// every question up to the limit.
func (s *Service) SearchLibrary(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	needle := strings.ToLower(query)

	libraryAssets, err := s.library.Assets(ctx)
	if err != nil {
		s.logError(opSearch, "assets_load_failed", err)
		return nil, newServiceError(opSearch, "assets_load_failed", err)
	}

	results := make([]SearchResult, 0, limit)
	for _, asset := range libraryAssets {
		if asset.Kind != AssetKindMCQ {
			continue
		}
		for _, question := range asset.Questions {
			if !questionMatches(question, needle) {
				continue
			}
			results = append(results, SearchResult{
				AssetID:      asset.ID,
				QuestionID:   question.ID,
				Question:     question.Question,
				Options:      append([]string(nil), question.Options...),
				CorrectIndex: question.CorrectIndex,
				Explanation:  question.Explanation,
				Difficulty:   question.Difficulty,
			})
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

func questionMatches(question CanonicalQuestion, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(question.Question), needle) {
		return true
	}
	for _, option := range question.Options {
		if strings.Contains(strings.ToLower(option), needle) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(question.Explanation), needle)
}
