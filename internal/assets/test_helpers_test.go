package assets

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memLibrary struct {
	assets []CanonicalAsset
}

func (l *memLibrary) Assets(_ context.Context) ([]CanonicalAsset, error) {
	out := make([]CanonicalAsset, len(l.assets))
	copy(out, l.assets)
	return out, nil
}

func (l *memLibrary) Asset(_ context.Context, assetID string) (*CanonicalAsset, error) {
	for i := range l.assets {
		if l.assets[i].ID == assetID {
			asset := l.assets[i]
			return &asset, nil
		}
	}
	return nil, nil
}

func (l *memLibrary) UpdateQuestion(_ context.Context, key QuestionKey, fields SharedFields) (bool, error) {
	for i := range l.assets {
		if l.assets[i].ID != key.AssetID || l.assets[i].Kind != AssetKindMCQ {
			continue
		}
		for j := range l.assets[i].Questions {
			if l.assets[i].Questions[j].ID != key.QuestionID {
				continue
			}
			question := &l.assets[i].Questions[j]
			question.Question = fields.Question
			question.Options = append([]string(nil), fields.Options...)
			question.CorrectIndex = fields.CorrectIndex
			question.Explanation = fields.Explanation
			question.Difficulty = fields.Difficulty
			return true, nil
		}
	}
	return false, nil
}

type memDesks struct {
	records map[DeskKind][]DeskRecord
}

func newMemDesks() *memDesks {
	return &memDesks{records: make(map[DeskKind][]DeskRecord)}
}

func (d *memDesks) Records(_ context.Context, kind DeskKind) ([]DeskRecord, error) {
	out := make([]DeskRecord, len(d.records[kind]))
	copy(out, d.records[kind])
	return out, nil
}

func (d *memDesks) Record(_ context.Context, kind DeskKind, recordID string) (*DeskRecord, error) {
	for i := range d.records[kind] {
		if d.records[kind][i].ID == recordID {
			record := d.records[kind][i]
			return &record, nil
		}
	}
	return nil, nil
}

func (d *memDesks) Update(_ context.Context, record DeskRecord) error {
	for i := range d.records[record.Desk] {
		if d.records[record.Desk][i].ID == record.ID {
			d.records[record.Desk][i] = record
			return nil
		}
	}
	return errors.New("record not found")
}

func (d *memDesks) Insert(_ context.Context, record DeskRecord) error {
	d.records[record.Desk] = append(d.records[record.Desk], record)
	return nil
}

type memRemote struct {
	enqueued []string
}

func (r *memRemote) Enqueue(_ context.Context, collection, recordID string, _ DeskRecord) error {
	r.enqueued = append(r.enqueued, collection+"/"+recordID)
	return nil
}

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewRecordID(_ DeskKind) (string, error) {
	if p.index >= len(p.ids) {
		return "", errors.New("exhausted ids")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

func newTestService(t *testing.T, library *memLibrary, desks *memDesks, remote *memRemote) *Service {
	t.Helper()
	cfg := ServiceConfig{
		Library: library,
		Desks:   desks,
		Clock:   func() time.Time { return time.Unix(1760000000, 0) },
	}
	if remote != nil {
		cfg.Remote = remote
		cfg.RemoteCollection = "coaching_questions"
	}
	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service
}

func mustKey(t *testing.T, assetID, questionID string) QuestionKey {
	t.Helper()
	key, err := NewQuestionKey(assetID, questionID)
	if err != nil {
		t.Fatalf("unexpected question key error: %v", err)
	}
	return key
}

func sampleLibrary() *memLibrary {
	return &memLibrary{assets: []CanonicalAsset{
		{
			ID:    "a1",
			Kind:  AssetKindMCQ,
			Title: "Arithmetic",
			Questions: []CanonicalQuestion{
				{
					ID:           "q1",
					Question:     "2+2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
					Explanation:  "Basic addition",
					Difficulty:   DifficultyEasy,
				},
				{
					ID:           "q2",
					Question:     "10/2?",
					Options:      []string{"4", "5"},
					CorrectIndex: 1,
				},
			},
		},
		{
			ID:    "a2",
			Kind:  "flashcards",
			Title: "Not an MCQ asset",
			Questions: []CanonicalQuestion{
				{ID: "q1", Question: "ignored", Options: []string{"x", "y"}},
			},
		},
	}}
}
