package registry

import (
	"errors"
	"path/filepath"
	"testing"
)

func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-registry.sqlite3")
	reg, err := Open(path)
	if err != nil {
		t.Fatalf("opening test registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestUpsertAndGet(t *testing.T) {
	reg := setupTestRegistry(t)

	e := &Entry{
		Subject: "P01", Session: "01", Task: "NaturalWalk",
		SourceFile: "sub-P01_task-natural-walk_eeg.xdf",
		Status:     StatusComplete,
		SampleRate: 250, NChannels: 64, NEvents: 12, DurationS: 300,
	}
	if err := reg.Upsert(e); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := reg.Get("P01", "01", "NaturalWalk")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusComplete || got.NChannels != 64 {
		t.Errorf("got %+v", got)
	}
}

// The (subject, session, task) triple is the unique key: upserting it again
// replaces the row instead of adding one.
func TestUpsertReplacesOnTriple(t *testing.T) {
	reg := setupTestRegistry(t)

	first := &Entry{Subject: "P01", Session: "01", Task: "NaturalWalk", Status: StatusFailed, Error: "no EEG stream"}
	if err := reg.Upsert(first); err != nil {
		t.Fatal(err)
	}
	second := &Entry{Subject: "P01", Session: "01", Task: "NaturalWalk", Status: StatusComplete}
	if err := reg.Upsert(second); err != nil {
		t.Fatal(err)
	}

	entries, err := reg.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Status != StatusComplete || entries[0].Error != "" {
		t.Errorf("entry = %+v, want the replacement", entries[0])
	}
}

func TestGetNotFound(t *testing.T) {
	reg := setupTestRegistry(t)
	_, err := reg.Get("P99", "01", "Nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	reg := setupTestRegistry(t)
	for _, e := range []*Entry{
		{Subject: "P02", Session: "01", Task: "NaturalWalk", Status: StatusComplete},
		{Subject: "P01", Session: "01", Task: "SittingEyesOpen", Status: StatusComplete},
		{Subject: "P01", Session: "01", Task: "NaturalWalk", Status: StatusComplete},
	} {
		if err := reg.Upsert(e); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := reg.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Subject != "P01" || entries[0].Task != "NaturalWalk" || entries[2].Subject != "P02" {
		t.Errorf("unexpected order: %+v", entries)
	}
}

func TestRecordAndListRuns(t *testing.T) {
	reg := setupTestRegistry(t)

	e := &Entry{Subject: "P01", Session: "01", Task: "NaturalWalk", Status: StatusComplete}
	if err := reg.Upsert(e); err != nil {
		t.Fatal(err)
	}
	stored, err := reg.Get("P01", "01", "NaturalWalk")
	if err != nil {
		t.Fatal(err)
	}

	run := &Run{ID: "run-1", EntryID: stored.ID, Mode: "findings", BadChannels: 2, Annotations: 5}
	if err := reg.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := reg.RunsFor(stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].BadChannels != 2 {
		t.Errorf("runs = %+v", runs)
	}
}
