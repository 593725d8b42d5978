package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quizforge/deskbank/backend/internal/assets"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig carries the dependencies of the canonical corpus store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store persists canonical assets and implements assets.LibraryStore.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewStore validates the configuration and constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Assets returns every canonical asset in corpus order.
func (s *Store) Assets(ctx context.Context) ([]assets.CanonicalAsset, error) {
	var rows []Asset
	if err := s.db.WithContext(ctx).
		Order("position ASC, asset_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("library: list assets: %w", err)
	}

	out := make([]assets.CanonicalAsset, 0, len(rows))
	for _, row := range rows {
		asset, err := decodeAsset(row)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

// Asset returns one canonical asset, or nil when absent.
func (s *Store) Asset(ctx context.Context, assetID string) (*assets.CanonicalAsset, error) {
	var row Asset
	err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("library: load asset: %w", err)
	}
	asset, err := decodeAsset(row)
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// UpdateQuestion overwrites the shared fields of one canonical question.
// Returns false when the asset is absent, is not an mcq asset, or holds no
// question with the given id.
func (s *Store) UpdateQuestion(ctx context.Context, key assets.QuestionKey, fields assets.SharedFields) (bool, error) {
	updated := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Asset
		err := tx.Where("asset_id = ? AND kind = ?", key.AssetID, assets.AssetKindMCQ).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("library: load asset: %w", err)
		}

		asset, err := decodeAsset(row)
		if err != nil {
			return err
		}
		for i := range asset.Questions {
			if asset.Questions[i].ID != key.QuestionID {
				continue
			}
			asset.Questions[i].Question = fields.Question
			asset.Questions[i].Options = append([]string(nil), fields.Options...)
			asset.Questions[i].CorrectIndex = fields.CorrectIndex
			asset.Questions[i].Explanation = fields.Explanation
			asset.Questions[i].Difficulty = fields.Difficulty
			updated = true
			break
		}
		if !updated {
			return nil
		}

		payload, err := json.Marshal(asset.Questions)
		if err != nil {
			return fmt.Errorf("library: encode questions: %w", err)
		}
		return tx.Model(&Asset{}).
			Where("asset_id = ?", key.AssetID).
			Updates(map[string]any{
				"questions_json": string(payload),
				"updated_at_s":   s.clock().UTC().Unix(),
			}).Error
	})
	if txErr != nil {
		return false, txErr
	}
	return updated, nil
}

// SaveAsset inserts or replaces a canonical asset. Used by the seeding flow
// and the library's own editing surface.
func (s *Store) SaveAsset(ctx context.Context, asset assets.CanonicalAsset, position int64) error {
	payload, err := json.Marshal(asset.Questions)
	if err != nil {
		return fmt.Errorf("library: encode questions: %w", err)
	}
	now := s.clock().UTC().Unix()
	row := Asset{
		AssetID:          asset.ID,
		Kind:             asset.Kind,
		Title:            asset.Title,
		Position:         position,
		QuestionsJSON:    string(payload),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("library: save asset: %w", err)
	}
	s.logger.Debug("library asset saved",
		zap.String("asset_id", asset.ID),
		zap.Int("questions", len(asset.Questions)))
	return nil
}

func decodeAsset(row Asset) (assets.CanonicalAsset, error) {
	var questions []assets.CanonicalQuestion
	if row.QuestionsJSON != "" {
		if err := json.Unmarshal([]byte(row.QuestionsJSON), &questions); err != nil {
			return assets.CanonicalAsset{}, fmt.Errorf("library: decode questions for %s: %w", row.AssetID, err)
		}
	}
	return assets.CanonicalAsset{
		ID:        row.AssetID,
		Kind:      row.Kind,
		Title:     row.Title,
		Questions: questions,
	}, nil
}
