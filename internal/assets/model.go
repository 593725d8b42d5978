package assets

import (
	"errors"
	"fmt"
	"strings"
)

// AssetKindMCQ is the only canonical asset kind the synchronization engine
// operates on. Assets of other kinds are invisible to lookup and search.
const AssetKindMCQ = "mcq"

// Difficulty grades a canonical question. The empty value means ungraded.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ErrInvalidDifficulty indicates a difficulty value outside the known set.
var ErrInvalidDifficulty = errors.New("assets: invalid difficulty")

// ParseDifficulty validates raw input and returns a Difficulty. Empty input
// is accepted and means ungraded.
func ParseDifficulty(rawInput string) (Difficulty, error) {
	trimmed := strings.ToLower(strings.TrimSpace(rawInput))
	switch Difficulty(trimmed) {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, rawInput)
	}
}

// DeskKind identifies one of the three working areas holding question copies.
type DeskKind string

const (
	DeskPersonal DeskKind = "personal"
	DeskGroup    DeskKind = "group"
	DeskCoaching DeskKind = "coaching"
)

// ErrInvalidDeskKind indicates a desk identifier outside the known set.
var ErrInvalidDeskKind = errors.New("assets: invalid desk kind")

// DeskKinds lists every desk in broadcast fan-out order.
var DeskKinds = []DeskKind{DeskPersonal, DeskGroup, DeskCoaching}

// ParseDeskKind validates raw input and returns a DeskKind.
func ParseDeskKind(rawInput string) (DeskKind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(rawInput))
	switch DeskKind(trimmed) {
	case DeskPersonal, DeskGroup, DeskCoaching:
		return DeskKind(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDeskKind, rawInput)
	}
}

// IDPrefix returns the prefix stamped onto generated record identifiers.
func (k DeskKind) IDPrefix() string {
	switch k {
	case DeskPersonal:
		return "p_"
	case DeskGroup:
		return "g_"
	case DeskCoaching:
		return "c_"
	default:
		return ""
	}
}

// SharedFields is the subset of question data mirrored between a canonical
// question and its desk copies. It is the only data synchronization mutates.
type SharedFields struct {
	Question     string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   Difficulty
}

// CanonicalQuestion is one question inside a canonical asset. Its identity is
// the pair (asset id, question id).
type CanonicalQuestion struct {
	ID           string     `json:"id" yaml:"id"`
	Question     string     `json:"question" yaml:"question"`
	Options      []string   `json:"options" yaml:"options"`
	CorrectIndex int        `json:"correct_index" yaml:"correct_index"`
	Explanation  string     `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Difficulty   Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
}

// Shared projects the question's synchronized field set.
func (q CanonicalQuestion) Shared() SharedFields {
	return SharedFields{
		Question:     q.Question,
		Options:      append([]string(nil), q.Options...),
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Difficulty:   q.Difficulty,
	}
}

// CanonicalAsset is the library-owned authoritative container of questions.
type CanonicalAsset struct {
	ID        string
	Kind      string
	Title     string
	Questions []CanonicalQuestion
}

// DeskRecord is a desk-owned copy of a question. Records created by import
// carry an AssetRef binding them to their canonical origin; records authored
// directly on a desk have none and are never touched by synchronization.
type DeskRecord struct {
	ID         string
	Desk       DeskKind
	CourseID   string
	GroupID    string
	CategoryID string
	CreatedBy  string
	Marks      int
	AssetRef   Reference

	Question     string
	Options      []string
	CorrectIndex int
	Explanation  string
	Difficulty   Difficulty

	CreatedAtSeconds int64
	UpdatedAtSeconds int64
}

// Shared projects the record's synchronized field set.
func (r DeskRecord) Shared() SharedFields {
	return SharedFields{
		Question:     r.Question,
		Options:      append([]string(nil), r.Options...),
		CorrectIndex: r.CorrectIndex,
		Explanation:  r.Explanation,
		Difficulty:   r.Difficulty,
	}
}

// applyShared overwrites the record's synchronized fields, leaving every
// desk-local field untouched.
func (r *DeskRecord) applyShared(fields SharedFields) {
	r.Question = fields.Question
	r.Options = append([]string(nil), fields.Options...)
	r.CorrectIndex = fields.CorrectIndex
	r.Explanation = fields.Explanation
	r.Difficulty = fields.Difficulty
}
