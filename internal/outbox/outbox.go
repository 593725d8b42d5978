package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/deskbank/backend/internal/assets"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

const (
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 30 * time.Second
)

// Config carries the dependencies and retry tuning of the outbox.
type Config struct {
	Database     *gorm.DB
	Clock        func() time.Time
	Logger       *zap.Logger
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Outbox durably queues remote-persistence operations. It implements
// assets.RemotePersister: Enqueue records the intent and returns; delivery
// happens on the worker's schedule.
type Outbox struct {
	db           *gorm.DB
	clock        func() time.Time
	logger       *zap.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

// New validates the configuration and constructs an Outbox.
func New(cfg Config) (*Outbox, error) {
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
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Outbox{
		db:           cfg.Database,
		clock:        clock,
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryBackoff: backoff,
	}, nil
}

// Enqueue stores a pending delivery for one desk record. The record payload
// is captured at enqueue time so later local edits do not alter what ships.
func (o *Outbox) Enqueue(ctx context.Context, collection, recordID string, record assets.DeskRecord) error {
	payload, err := json.Marshal(newRemotePayload(record))
	if err != nil {
		return fmt.Errorf("outbox: encode payload: %w", err)
	}
	entryID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("outbox: entry id: %w", err)
	}
	now := o.clock().UTC().Unix()
	entry := Entry{
		EntryID:            entryID.String(),
		Collection:         collection,
		RecordID:           recordID,
		PayloadJSON:        string(payload),
		MaxAttempts:        o.maxAttempts,
		NextAttemptSeconds: now,
		Status:             StatusPending,
		CreatedAtSeconds:   now,
		UpdatedAtSeconds:   now,
	}
	if err := o.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("outbox: enqueue: %w", err)
	}
	return nil
}

// Due returns pending entries whose next attempt time has passed, oldest
// first.
func (o *Outbox) Due(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	if err := o.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at_s <= ?", StatusPending, o.clock().UTC().Unix()).
		Order("created_at_s ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("outbox: load due entries: %w", err)
	}
	return entries, nil
}

// MarkDelivered records a successful delivery.
func (o *Outbox) MarkDelivered(ctx context.Context, entryID string) error {
	return o.transition(ctx, entryID, map[string]any{
		"status":       StatusCompleted,
		"last_error":   "",
		"updated_at_s": o.clock().UTC().Unix(),
	})
}

// MarkAttemptFailed records a failed delivery attempt, scheduling a retry
// with backoff or marking the entry failed once attempts are exhausted.
func (o *Outbox) MarkAttemptFailed(ctx context.Context, entry Entry, cause error) error {
	attempts := entry.Attempts + 1
	now := o.clock().UTC()
	updates := map[string]any{
		"attempts":     attempts,
		"last_error":   cause.Error(),
		"updated_at_s": now.Unix(),
	}
	if attempts >= entry.MaxAttempts {
		updates["status"] = StatusFailed
		o.logger.Error("outbox entry exhausted retries",
			zap.String("entry_id", entry.EntryID),
			zap.String("collection", entry.Collection),
			zap.String("record_id", entry.RecordID),
			zap.Int("attempts", attempts),
			zap.Error(cause))
	} else {
		backoff := o.retryBackoff * time.Duration(attempts)
		updates["next_attempt_at_s"] = now.Add(backoff).Unix()
		o.logger.Warn("outbox delivery failed, retry scheduled",
			zap.String("entry_id", entry.EntryID),
			zap.String("record_id", entry.RecordID),
			zap.Int("attempts", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(cause))
	}
	return o.transition(ctx, entry.EntryID, updates)
}

func (o *Outbox) transition(ctx context.Context, entryID string, updates map[string]any) error {
	if err := o.db.WithContext(ctx).Model(&Entry{}).
		Where("entry_id = ?", entryID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("outbox: update entry: %w", err)
	}
	return nil
}

// remotePayload is the wire shape shipped to the remote document store.
type remotePayload struct {
	ID           string   `json:"id"`
	Desk         string   `json:"desk"`
	CourseID     string   `json:"course_id,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	CategoryID   string   `json:"category_id,omitempty"`
	CreatedBy    string   `json:"created_by,omitempty"`
	Marks        int      `json:"marks,omitempty"`
	AssetRef     string   `json:"asset_ref,omitempty"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	UpdatedAtS   int64    `json:"updated_at_s"`
}

func newRemotePayload(record assets.DeskRecord) remotePayload {
	return remotePayload{
		ID:           record.ID,
		Desk:         string(record.Desk),
		CourseID:     record.CourseID,
		GroupID:      record.GroupID,
		CategoryID:   record.CategoryID,
		CreatedBy:    record.CreatedBy,
		Marks:        record.Marks,
		AssetRef:     record.AssetRef.String(),
		Question:     record.Question,
		Options:      record.Options,
		CorrectIndex: record.CorrectIndex,
		Explanation:  record.Explanation,
		Difficulty:   string(record.Difficulty),
		UpdatedAtS:   record.UpdatedAtSeconds,
	}
}
