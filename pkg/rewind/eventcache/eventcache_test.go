package eventcache

import (
	"errors"
	"testing"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEvents() []types.Event {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []types.Event{
		{
			Type:      types.EventUpload,
			CreatedAt: base,
			CreatedBy: types.Actor{ID: "7", Login: "victim@example.com"},
			Source:    types.Item{Type: "file", ID: "f1", Name: "budget.xlsx"},
		},
		{
			Type:      types.EventDelete,
			CreatedAt: base.Add(time.Minute),
			CreatedBy: types.Actor{ID: "7", Login: "victim@example.com"},
			Source:    types.Item{Type: "file", ID: "f1", Name: "budget.xlsx"},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	want := sampleEvents()

	if err := s.Put(start, end, types.DefaultEventTypes, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(start, end, types.DefaultEventTypes)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Get() = %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type || got[i].Source.ID != want[i].Source.ID {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
		if !got[i].CreatedAt.Equal(want[i].CreatedAt) {
			t.Errorf("event %d CreatedAt = %v, want %v", i, got[i].CreatedAt, want[i].CreatedAt)
		}
	}
}

func TestGetMiss(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(time.Now(), time.Now().Add(time.Hour), types.DefaultEventTypes)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDifferentQueriesUseDifferentKeys(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	if err := s.Put(start, end, types.DefaultEventTypes, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	// Different window misses.
	if _, err := s.Get(start.Add(time.Hour), end, types.DefaultEventTypes); !errors.Is(err, ErrNotFound) {
		t.Errorf("shifted window Get() error = %v, want ErrNotFound", err)
	}

	// Different event-type set misses.
	if _, err := s.Get(start, end, []types.EventType{types.EventDelete}); !errors.Is(err, ErrNotFound) {
		t.Errorf("narrowed types Get() error = %v, want ErrNotFound", err)
	}
}

func TestKeyNormalizesToUTC(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	est := time.FixedZone("EST", -5*3600)
	same := Key(start.In(est), end.In(est), types.DefaultEventTypes)

	if string(Key(start, end, types.DefaultEventTypes)) != string(same) {
		t.Error("Key() must be zone-independent for the same instant")
	}
}

func TestPurge(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	if err := s.Put(start, end, types.DefaultEventTypes, sampleEvents()); err != nil {
		t.Fatal(err)
	}

	if err := s.Purge(); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if _, err := s.Get(start, end, types.DefaultEventTypes); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Purge() error = %v, want ErrNotFound", err)
	}
}

func TestEmptyEventListIsCacheable(t *testing.T) {
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	if err := s.Put(start, end, nil, []types.Event{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(start, end, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get() = %d events, want 0", len(got))
	}
}
