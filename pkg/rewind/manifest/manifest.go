// Package manifest records recovery run history. Every run appends one
// JSON entry (operation, window, summary counts, snapshot path) to a
// manifest directory so an operator can audit what past runs restored
// and promoted.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names the pipeline stage a run executed.
type Operation string

// Run operations.
const (
	// OpRecover is the full pipeline: events through promotion.
	OpRecover Operation = "recover"
	// OpEvents is ingestion and grouping only.
	OpEvents Operation = "events"
	// OpVersions is reconciliation plus version fetch from a checkpoint.
	OpVersions Operation = "versions"
	// OpPromote is selection plus promotion from a checkpoint.
	OpPromote Operation = "promote"
)

// Summary aggregates per-file outcomes of a run.
type Summary struct {
	Files         int            `json:"files"`
	Restored      int            `json:"restored"`
	Versioned     int            `json:"versioned"`
	Promoted      int            `json:"promoted"`
	Unrecoverable int            `json:"unrecoverable"`
	Failed        int            `json:"failed"`
	Skipped       map[string]int `json:"skipped,omitempty"`
}

// Entry is one recorded run.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Operation    Operation `json:"operation"`
	ActorLogin   string    `json:"actor_login,omitempty"`
	WindowStart  time.Time `json:"window_start,omitempty"`
	WindowEnd    time.Time `json:"window_end,omitempty"`
	SnapshotPath string    `json:"snapshot_path,omitempty"`
	DryRun       bool      `json:"dry_run,omitempty"`
	Summary      Summary   `json:"summary"`
	Elapsed      string    `json:"elapsed,omitempty"`
}

// Manifest manages run history entries on the filesystem.
type Manifest struct {
	dir string
	mu  sync.Mutex
}

// New creates a Manifest with the given directory. The directory is not
// created until the first Log call.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	return &Manifest{dir: dir}, nil
}

// Log persists a run entry, assigning it an id and timestamp.
func (m *Manifest) Log(entry Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now().UTC()

	if err := m.writeEntry(&entry); err != nil {
		return nil, fmt.Errorf("writing manifest entry: %w", err)
	}
	return &entry, nil
}

// writeEntry writes an entry to a JSON file, atomically via temp file
// and rename.
func (m *Manifest) writeEntry(entry *Entry) error {
	// The id suffix keeps same-second runs of one operation from
	// overwriting each other.
	filePath := filepath.Join(m.dir, fmt.Sprintf("%s-%s-%s.json",
		entry.Timestamp.Format("20060102T150405"), entry.Operation, entry.ID[:8]))

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// List returns entries sorted newest first. limit <= 0 returns all.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.dir, f.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Skip files that can't be parsed
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
