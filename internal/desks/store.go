package desks

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

// StoreConfig carries the dependencies of the desk record store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store persists desk records for all three desks and implements
// assets.DeskStore.
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

// Records returns a snapshot of every record owned by the desk, in insertion
// order.
func (s *Store) Records(ctx context.Context, kind assets.DeskKind) ([]assets.DeskRecord, error) {
	var rows []Record
	if err := s.db.WithContext(ctx).
		Where("desk = ?", string(kind)).
		Order("created_at_s ASC, record_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("desks: list records: %w", err)
	}

	out := make([]assets.DeskRecord, 0, len(rows))
	for _, row := range rows {
		record, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Record returns one desk record, or nil when absent.
func (s *Store) Record(ctx context.Context, kind assets.DeskKind, recordID string) (*assets.DeskRecord, error) {
	var row Record
	err := s.db.WithContext(ctx).
		Where("desk = ? AND record_id = ?", string(kind), recordID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("desks: load record: %w", err)
	}
	record, err := decodeRecord(row)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Update overwrites an existing desk record.
func (s *Store) Update(ctx context.Context, record assets.DeskRecord) error {
	row, err := encodeRecord(record)
	if err != nil {
		return err
	}
	// Select("*") forces zero-valued fields (a correct index of 0, cleared
	// explanation) to be written as well.
	result := s.db.WithContext(ctx).Model(&Record{}).
		Where("desk = ? AND record_id = ?", row.Desk, row.RecordID).
		Select("*").Updates(row)
	if result.Error != nil {
		return fmt.Errorf("desks: update record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("desks: update record: %s/%s not found", row.Desk, row.RecordID)
	}
	return nil
}

// Insert stores a freshly created desk record.
func (s *Store) Insert(ctx context.Context, record assets.DeskRecord) error {
	row, err := encodeRecord(record)
	if err != nil {
		return err
	}
	if row.CreatedAtSeconds == 0 {
		row.CreatedAtSeconds = s.clock().UTC().Unix()
	}
	if row.UpdatedAtSeconds == 0 {
		row.UpdatedAtSeconds = row.CreatedAtSeconds
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("desks: insert record: %w", err)
	}
	s.logger.Debug("desk record inserted",
		zap.String("desk", row.Desk),
		zap.String("record_id", row.RecordID))
	return nil
}

func encodeRecord(record assets.DeskRecord) (Record, error) {
	options, err := json.Marshal(record.Options)
	if err != nil {
		return Record{}, fmt.Errorf("desks: encode options: %w", err)
	}
	return Record{
		RecordID:         record.ID,
		Desk:             string(record.Desk),
		CourseID:         record.CourseID,
		GroupID:          record.GroupID,
		CategoryID:       record.CategoryID,
		CreatedBy:        record.CreatedBy,
		Marks:            record.Marks,
		AssetRef:         record.AssetRef.String(),
		Question:         record.Question,
		OptionsJSON:      string(options),
		CorrectIndex:     record.CorrectIndex,
		Explanation:      record.Explanation,
		Difficulty:       string(record.Difficulty),
		CreatedAtSeconds: record.CreatedAtSeconds,
		UpdatedAtSeconds: record.UpdatedAtSeconds,
	}, nil
}

func decodeRecord(row Record) (assets.DeskRecord, error) {
	var options []string
	if row.OptionsJSON != "" {
		if err := json.Unmarshal([]byte(row.OptionsJSON), &options); err != nil {
			return assets.DeskRecord{}, fmt.Errorf("desks: decode options for %s: %w", row.RecordID, err)
		}
	}
	return assets.DeskRecord{
		ID:               row.RecordID,
		Desk:             assets.DeskKind(row.Desk),
		CourseID:         row.CourseID,
		GroupID:          row.GroupID,
		CategoryID:       row.CategoryID,
		CreatedBy:        row.CreatedBy,
		Marks:            row.Marks,
		AssetRef:         assets.Reference(row.AssetRef),
		Question:         row.Question,
		Options:          options,
		CorrectIndex:     row.CorrectIndex,
		Explanation:      row.Explanation,
		Difficulty:       assets.Difficulty(row.Difficulty),
		CreatedAtSeconds: row.CreatedAtSeconds,
		UpdatedAtSeconds: row.UpdatedAtSeconds,
	}, nil
}
