package assets

import (
	"context"
	"testing"
)

func TestResolveReturnsCanonicalQuestion(t *testing.T) {
	service := newTestService(t, sampleLibrary(), newMemDesks(), nil)

	question, err := service.Resolve(context.Background(), Reference("a1:q1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if question == nil {
		t.Fatalf("expected question to resolve")
	}
	if question.Question != "2+2?" || question.CorrectIndex != 1 {
		t.Fatalf("unexpected question %#v", question)
	}
}

func TestResolveAbsenceIsSilent(t *testing.T) {
	service := newTestService(t, sampleLibrary(), newMemDesks(), nil)

	tests := []struct {
		name string
		ref  Reference
	}{
		{name: "malformed", ref: "not-a-reference"},
		{name: "missing-asset", ref: "nope:q1"},
		{name: "missing-question", ref: "a1:q99"},
		{name: "non-mcq-asset", ref: "a2:q1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question, err := service.Resolve(context.Background(), tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if question != nil {
				t.Fatalf("expected no question for %q, got %#v", tt.ref, question)
			}
		})
	}
}

func TestSyncAllDesksFansOutToMatchingRecords(t *testing.T) {
	library := sampleLibrary()
	desks := newMemDesks()
	remote := &memRemote{}
	seed := []DeskRecord{
		{ID: "p_1", Desk: DeskPersonal, CourseID: "c1", AssetRef: "a1:q1", Question: "stale", CorrectIndex: 0},
		{ID: "p_2", Desk: DeskPersonal, CourseID: "c2", AssetRef: "a1:q2", Question: "other", CorrectIndex: 0},
		{ID: "p_3", Desk: DeskPersonal, CourseID: "c3", Question: "independent", CorrectIndex: 0},
		{ID: "g_1", Desk: DeskGroup, GroupID: "grp-7", AssetRef: "a1:q1", Question: "stale", Marks: 5},
		{ID: "c_1", Desk: DeskCoaching, CategoryID: "cat-2", AssetRef: "a1:q1", Question: "stale"},
	}
	for _, record := range seed {
		if err := desks.Insert(context.Background(), record); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
	service := newTestService(t, library, desks, remote)

	counts, err := service.SyncAllDesks(context.Background(), mustKey(t, "a1", "q1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Personal != 1 || counts.Group != 1 || counts.Coaching != 1 {
		t.Fatalf("unexpected counts %#v", counts)
	}
	if counts.Total != counts.Personal+counts.Group+counts.Coaching {
		t.Fatalf("total %d does not match per-desk sum", counts.Total)
	}

	for _, probe := range []struct {
		kind DeskKind
		id   string
	}{
		{kind: DeskPersonal, id: "p_1"},
		{kind: DeskGroup, id: "g_1"},
		{kind: DeskCoaching, id: "c_1"},
	} {
		record, err := desks.Record(context.Background(), probe.kind, probe.id)
		if err != nil {
			t.Fatalf("record load failed: %v", err)
		}
		if record.Question != "2+2?" || record.CorrectIndex != 1 {
			t.Fatalf("record %s not updated: %#v", probe.id, record)
		}
	}

	// Desk-local fields survive the broadcast.
	group, _ := desks.Record(context.Background(), DeskGroup, "g_1")
	if group.GroupID != "grp-7" || group.Marks != 5 {
		t.Fatalf("desk-local fields overwritten: %#v", group)
	}

	// Records with a different or absent reference stay untouched.
	other, _ := desks.Record(context.Background(), DeskPersonal, "p_2")
	if other.Question != "other" {
		t.Fatalf("non-matching record mutated: %#v", other)
	}
	independent, _ := desks.Record(context.Background(), DeskPersonal, "p_3")
	if independent.Question != "independent" {
		t.Fatalf("independent record mutated: %#v", independent)
	}

	// Only the coaching update reaches the remote persister.
	if len(remote.enqueued) != 1 || remote.enqueued[0] != "coaching_questions/c_1" {
		t.Fatalf("unexpected remote enqueues %#v", remote.enqueued)
	}
}

func TestSyncAllDesksDanglingReferenceIsNoOp(t *testing.T) {
	desks := newMemDesks()
	if err := desks.Insert(context.Background(), DeskRecord{
		ID: "p_1", Desk: DeskPersonal, AssetRef: "gone:q1", Question: "kept",
	}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	service := newTestService(t, sampleLibrary(), desks, nil)

	counts, err := service.SyncAllDesks(context.Background(), mustKey(t, "gone", "q1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts != (BroadcastCounts{}) {
		t.Fatalf("expected all-zero counts, got %#v", counts)
	}
	record, _ := desks.Record(context.Background(), DeskPersonal, "p_1")
	if record.Question != "kept" {
		t.Fatalf("record mutated by dangling broadcast: %#v", record)
	}
}

func TestSyncLibraryToDeskCountsSingleDesk(t *testing.T) {
	desks := newMemDesks()
	for _, record := range []DeskRecord{
		{ID: "g_1", Desk: DeskGroup, AssetRef: "a1:q1"},
		{ID: "g_2", Desk: DeskGroup, AssetRef: "a1:q1"},
		{ID: "p_1", Desk: DeskPersonal, AssetRef: "a1:q1"},
	} {
		if err := desks.Insert(context.Background(), record); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
	service := newTestService(t, sampleLibrary(), desks, nil)

	updated, err := service.SyncLibraryToDesk(context.Background(), DeskGroup, mustKey(t, "a1", "q1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 group updates, got %d", updated)
	}
	personal, _ := desks.Record(context.Background(), DeskPersonal, "p_1")
	if personal.Question == "2+2?" {
		t.Fatalf("personal desk touched by group-only sync")
	}
}

func TestSyncDeskToLibraryPushesSharedFields(t *testing.T) {
	library := sampleLibrary()
	desks := newMemDesks()
	if err := desks.Insert(context.Background(), DeskRecord{
		ID:           "p_1",
		Desk:         DeskPersonal,
		CourseID:     "c1",
		AssetRef:     "a1:q1",
		Question:     "2+2 equals?",
		Options:      []string{"3", "4", "5"},
		CorrectIndex: 1,
		Explanation:  "Edited on the desk",
		Difficulty:   DifficultyMedium,
	}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	service := newTestService(t, library, desks, nil)

	updated, err := service.SyncDeskToLibrary(context.Background(), DeskPersonal, "p_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Fatalf("expected reverse sync to report an update")
	}

	asset, _ := library.Asset(context.Background(), "a1")
	if asset.Questions[0].Question != "2+2 equals?" {
		t.Fatalf("canonical question not updated: %#v", asset.Questions[0])
	}
	if asset.Questions[0].Explanation != "Edited on the desk" {
		t.Fatalf("canonical explanation not updated: %#v", asset.Questions[0])
	}
	if asset.Questions[0].Difficulty != DifficultyMedium {
		t.Fatalf("canonical difficulty not updated: %#v", asset.Questions[0])
	}
	// The sibling question is untouched: reverse sync never fans out.
	if asset.Questions[1].Question != "10/2?" {
		t.Fatalf("sibling question mutated: %#v", asset.Questions[1])
	}
}

func TestSyncDeskToLibraryFalseOutcomes(t *testing.T) {
	library := sampleLibrary()
	desks := newMemDesks()
	seed := []DeskRecord{
		{ID: "p_noref", Desk: DeskPersonal, Question: "local only"},
		{ID: "p_badref", Desk: DeskPersonal, AssetRef: "malformed", Question: "x"},
		{ID: "p_dangling", Desk: DeskPersonal, AssetRef: "gone:q1", Question: "x"},
	}
	for _, record := range seed {
		if err := desks.Insert(context.Background(), record); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
	service := newTestService(t, library, desks, nil)

	before, _ := library.Asset(context.Background(), "a1")
	original := before.Questions[0].Question

	for _, recordID := range []string{"missing", "p_noref", "p_badref", "p_dangling"} {
		updated, err := service.SyncDeskToLibrary(context.Background(), DeskPersonal, recordID)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", recordID, err)
		}
		if updated {
			t.Fatalf("expected false outcome for %s", recordID)
		}
	}

	after, _ := library.Asset(context.Background(), "a1")
	if after.Questions[0].Question != original {
		t.Fatalf("canonical store mutated by failed reverse sync")
	}
}

func TestImportToDeskCreatesBoundCopy(t *testing.T) {
	library := sampleLibrary()
	desks := newMemDesks()
	remote := &memRemote{}
	service := newTestService(t, library, desks, remote)

	record, err := service.ImportToDesk(context.Background(), DeskPersonal, ImportRequest{
		Key:        mustKey(t, "a1", "q1"),
		CourseID:   "c1",
		CategoryID: "cat-9",
		CreatedBy:  "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil {
		t.Fatalf("expected a new record")
	}
	if record.AssetRef != "a1:q1" {
		t.Fatalf("unexpected asset ref %q", record.AssetRef)
	}
	if record.Question != "2+2?" || record.CorrectIndex != 1 {
		t.Fatalf("shared fields not copied: %#v", record)
	}
	if record.CourseID != "c1" || record.CategoryID != "cat-9" || record.CreatedBy != "user-1" {
		t.Fatalf("desk-scoped fields not applied: %#v", record)
	}

	stored, _ := desks.Record(context.Background(), DeskPersonal, record.ID)
	if stored == nil {
		t.Fatalf("record not inserted into desk store")
	}
	// Personal imports never touch the remote persister.
	if len(remote.enqueued) != 0 {
		t.Fatalf("unexpected remote enqueues %#v", remote.enqueued)
	}
}

func TestImportToCoachingEnqueuesRemotePersist(t *testing.T) {
	remote := &memRemote{}
	service := newTestService(t, sampleLibrary(), newMemDesks(), remote)

	record, err := service.ImportToDesk(context.Background(), DeskCoaching, ImportRequest{
		Key:       mustKey(t, "a1", "q1"),
		CreatedBy: "coach-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remote.enqueued) != 1 || remote.enqueued[0] != "coaching_questions/"+record.ID {
		t.Fatalf("unexpected remote enqueues %#v", remote.enqueued)
	}
}

func TestImportToDeskUnresolvedIsNoOp(t *testing.T) {
	desks := newMemDesks()
	service := newTestService(t, sampleLibrary(), desks, nil)

	record, err := service.ImportToDesk(context.Background(), DeskGroup, ImportRequest{
		Key: mustKey(t, "a1", "q99"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for unresolved import, got %#v", record)
	}
	records, _ := desks.Records(context.Background(), DeskGroup)
	if len(records) != 0 {
		t.Fatalf("unexpected insert on unresolved import: %#v", records)
	}
}

func TestImportTwiceProducesDistinctIDs(t *testing.T) {
	desks := newMemDesks()
	service := newTestService(t, sampleLibrary(), desks, nil)

	request := ImportRequest{Key: mustKey(t, "a1", "q1"), CourseID: "c1"}
	first, err := service.ImportToDesk(context.Background(), DeskPersonal, request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.ImportToDesk(context.Background(), DeskPersonal, request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, both %q", first.ID)
	}
	for _, record := range []*DeskRecord{first, second} {
		if record.AssetRef != "a1:q1" {
			t.Fatalf("unexpected asset ref %q", record.AssetRef)
		}
		if record.Question != "2+2?" || record.CorrectIndex != 1 {
			t.Fatalf("shared fields diverge from canonical: %#v", record)
		}
	}
}
