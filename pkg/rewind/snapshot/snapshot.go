// Package snapshot persists the operator-facing JSON checkpoints of a
// recovery run: one after event grouping and one after version fetch.
// Snapshots exist so the operator can inspect intermediate state and
// resume the workflow between stages; they are not an engine-internal
// persistence layer.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Write serializes the timeline mapping to path as indented JSON,
// atomically via a temp file and rename. Reading a snapshot back
// reproduces an equivalent mapping: same keys, same ordered event
// lists, same version lists.
func Write(path string, timelines map[string]*types.FileTimeline) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(timelines, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	return nil
}

// Read loads a snapshot written by Write.
func Read(path string) (map[string]*types.FileTimeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var timelines map[string]*types.FileTimeline
	if err := json.Unmarshal(data, &timelines); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	return timelines, nil
}
