// Package seed loads a YAML question-bank file into the library store.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/quizforge/deskbank/backend/internal/assets"
	"github.com/quizforge/deskbank/backend/internal/library"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Assets []seedAsset `yaml:"assets"`
}

type seedAsset struct {
	ID        string                     `yaml:"id"`
	Title     string                     `yaml:"title"`
	Questions []assets.CanonicalQuestion `yaml:"questions"`
}

// LoadFile parses the YAML file at path and saves every asset as an mcq
// canonical asset, preserving file order as corpus order. Returns the number
// of assets written.
func LoadFile(ctx context.Context, path string, store *library.Store, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("seed: read %s: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("seed: parse %s: %w", path, err)
	}

	for position, asset := range file.Assets {
		if err := validateAsset(asset); err != nil {
			return 0, err
		}
		canonical := assets.CanonicalAsset{
			ID:        asset.ID,
			Kind:      assets.AssetKindMCQ,
			Title:     asset.Title,
			Questions: asset.Questions,
		}
		if err := store.SaveAsset(ctx, canonical, int64(position+1)); err != nil {
			return 0, err
		}
		logger.Info("seeded library asset",
			zap.String("asset_id", asset.ID),
			zap.Int("questions", len(asset.Questions)))
	}

	return len(file.Assets), nil
}

func validateAsset(asset seedAsset) error {
	if _, err := assets.NewQuestionKey(asset.ID, "probe"); err != nil {
		return fmt.Errorf("seed: asset %q: %w", asset.ID, err)
	}
	seen := make(map[string]struct{}, len(asset.Questions))
	for _, question := range asset.Questions {
		if _, err := assets.NewQuestionKey(asset.ID, question.ID); err != nil {
			return fmt.Errorf("seed: asset %q question %q: %w", asset.ID, question.ID, err)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("seed: asset %q: duplicate question id %q", asset.ID, question.ID)
		}
		seen[question.ID] = struct{}{}
		if len(question.Options) < 2 {
			return fmt.Errorf("seed: asset %q question %q: at least two options required", asset.ID, question.ID)
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return fmt.Errorf("seed: asset %q question %q: correct_index %d out of range", asset.ID, question.ID, question.CorrectIndex)
		}
		if _, err := assets.ParseDifficulty(string(question.Difficulty)); err != nil {
			return fmt.Errorf("seed: asset %q question %q: %w", asset.ID, question.ID, err)
		}
	}
	return nil
}
