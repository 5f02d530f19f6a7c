package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

func sampleTimelines() map[string]*types.FileTimeline {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return map[string]*types.FileTimeline{
		"f1": {
			FileID:          "f1",
			CreatedByUserID: "7",
			CreatedByLogin:  "victim@example.com",
			ItemType:        "file",
			ItemName:        "budget.xlsx",
			Events: []types.EventSummary{
				{EventType: types.EventUpload, EventTime: base},
				{EventType: types.EventDelete, EventTime: base.Add(time.Minute)},
			},
			PreviousVersions: []types.Version{
				{VersionID: "v1", VersionName: "budget.xlsx", CreatedAt: base},
			},
		},
		"f2-new": {
			FileID:           "f2-new",
			ItemType:         "file",
			ItemName:         "notes.txt",
			Events:           []types.EventSummary{{EventType: types.EventEdit, EventTime: base}},
			PreviousVersions: []types.Version{},
			RestoredFileID:   "f2-new",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snap.json")
	want := sampleTimelines()

	if err := Write(path, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("Read() returned %d timelines, want %d", len(got), len(want))
	}
	for id, wantTL := range want {
		gotTL, ok := got[id]
		if !ok {
			t.Fatalf("timeline %s missing after round trip", id)
		}
		if gotTL.FileID != wantTL.FileID {
			t.Errorf("%s FileID = %q, want %q", id, gotTL.FileID, wantTL.FileID)
		}
		if len(gotTL.Events) != len(wantTL.Events) {
			t.Errorf("%s events = %d, want %d", id, len(gotTL.Events), len(wantTL.Events))
		}
		if gotTL.RestoredFileID != wantTL.RestoredFileID {
			t.Errorf("%s RestoredFileID = %q, want %q", id, gotTL.RestoredFileID, wantTL.RestoredFileID)
		}
	}

	// Event order must survive serialization.
	f1 := got["f1"]
	if f1.Events[0].EventType != types.EventUpload || f1.Events[1].EventType != types.EventDelete {
		t.Errorf("f1 event order corrupted: %v", f1.Events)
	}
}

func TestWriteCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "snap.json")
	if err := Write(path, sampleTimelines()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not created: %v", err)
	}
}

func TestWriteUsesSnapshotFieldNames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := Write(path, sampleTimelines()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}

	f1 := raw["f1"]
	for _, key := range []string{
		"file_id",
		"event_created_by_user_id",
		"event_created_by_login",
		"item_type",
		"item_name",
		"events",
		"previous_versions",
	} {
		if _, ok := f1[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}
	if _, ok := raw["f2-new"]["restored_file_id"]; !ok {
		t.Error("restored timeline missing restored_file_id")
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	if err := Write(path, sampleTimelines()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "snap.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("Read() error = nil for missing file")
	}
}

func TestReadMalformedSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Read(path)
	if err == nil {
		t.Fatal("Read() error = nil for malformed snapshot")
	}
}
