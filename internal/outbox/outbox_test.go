package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/quizforge/deskbank/backend/internal/assets"
	"gorm.io/gorm"
)

func newTestOutbox(t *testing.T, clock func() time.Time) *Outbox {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	box, err := New(Config{
		Database:     db,
		Clock:        clock,
		MaxAttempts:  3,
		RetryBackoff: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create outbox: %v", err)
	}
	return box
}

func sampleRecord() assets.DeskRecord {
	return assets.DeskRecord{
		ID:           "c_1760000000000_abcd1234",
		Desk:         assets.DeskCoaching,
		CategoryID:   "cat-1",
		AssetRef:     "a1:q1",
		Question:     "2+2?",
		Options:      []string{"3", "4", "5"},
		CorrectIndex: 1,
	}
}

func TestEnqueueSnapshotsPayload(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := box.Due(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 due entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Collection != "coaching_questions" || entry.RecordID != record.ID {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if entry.Status != StatusPending || entry.Attempts != 0 {
		t.Fatalf("unexpected entry state %#v", entry)
	}

	var payload struct {
		AssetRef     string `json:"asset_ref"`
		CorrectIndex int    `json:"correct_index"`
	}
	if err := json.Unmarshal([]byte(entry.PayloadJSON), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.AssetRef != "a1:q1" || payload.CorrectIndex != 1 {
		t.Fatalf("unexpected payload %s", entry.PayloadJSON)
	}
}

func TestMarkDeliveredRemovesEntryFromDueSet(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, err := box.Due(context.Background(), 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 due entry: err=%v n=%d", err, len(entries))
	}

	if err := box.MarkDelivered(context.Background(), entries[0].EntryID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err = box.Due(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no due entries, got %d", len(entries))
	}
}

func TestMarkAttemptFailedSchedulesRetryWithBackoff(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := box.Due(context.Background(), 10)
	if len(entries) != 1 {
		t.Fatalf("expected 1 due entry, got %d", len(entries))
	}

	if err := box.MarkAttemptFailed(context.Background(), entries[0], errors.New("remote down")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Before the backoff window the entry must not come due.
	entries, _ = box.Due(context.Background(), 10)
	if len(entries) != 0 {
		t.Fatalf("expected no due entries inside the backoff window, got %d", len(entries))
	}

	now = now.Add(11 * time.Second)
	entries, _ = box.Due(context.Background(), 10)
	if len(entries) != 1 {
		t.Fatalf("expected retry to come due, got %d entries", len(entries))
	}
	if entries[0].Attempts != 1 || entries[0].LastError != "remote down" {
		t.Fatalf("unexpected entry state %#v", entries[0])
	}
}

func TestMarkAttemptFailedExhaustsRetries(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cause := errors.New("remote down")
	for attempt := 0; attempt < 3; attempt++ {
		entries, _ := box.Due(context.Background(), 10)
		if len(entries) != 1 {
			t.Fatalf("attempt %d: expected 1 due entry, got %d", attempt, len(entries))
		}
		if err := box.MarkAttemptFailed(context.Background(), entries[0], cause); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		now = now.Add(time.Hour)
	}

	entries, _ := box.Due(context.Background(), 10)
	if len(entries) != 0 {
		t.Fatalf("expected failed entry to leave the due set, got %d", len(entries))
	}
}

type fakeDeliverer struct {
	delivered map[string]string
	failures  int
}

func (f *fakeDeliverer) Persist(_ context.Context, collection, recordID string, payloadJSON string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("remote down")
	}
	if f.delivered == nil {
		f.delivered = make(map[string]string)
	}
	f.delivered[collection+"/"+recordID] = payloadJSON
	return nil
}

func TestWorkerDrainDeliversAndMarks(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })
	deliverer := &fakeDeliverer{}
	worker, err := NewWorker(WorkerConfig{Outbox: box, Deliverer: deliverer})
	if err != nil {
		t.Fatalf("failed to create worker: %v", err)
	}

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	worker.DrainOnce(context.Background())

	if _, ok := deliverer.delivered["coaching_questions/"+record.ID]; !ok {
		t.Fatalf("expected delivery, got %#v", deliverer.delivered)
	}
	entries, _ := box.Due(context.Background(), 10)
	if len(entries) != 0 {
		t.Fatalf("expected delivered entry to leave the due set, got %d", len(entries))
	}
}

func TestWorkerDrainKeepsFailedEntryPending(t *testing.T) {
	now := time.Unix(1760000000, 0)
	box := newTestOutbox(t, func() time.Time { return now })
	deliverer := &fakeDeliverer{failures: 1}
	worker, err := NewWorker(WorkerConfig{Outbox: box, Deliverer: deliverer})
	if err != nil {
		t.Fatalf("failed to create worker: %v", err)
	}

	record := sampleRecord()
	if err := box.Enqueue(context.Background(), "coaching_questions", record.ID, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	worker.DrainOnce(context.Background())
	if len(deliverer.delivered) != 0 {
		t.Fatalf("expected no delivery on failure, got %#v", deliverer.delivered)
	}

	now = now.Add(time.Minute)
	worker.DrainOnce(context.Background())
	if _, ok := deliverer.delivered["coaching_questions/"+record.ID]; !ok {
		t.Fatalf("expected delivery after retry, got %#v", deliverer.delivered)
	}
}
