// Package types provides core data types for the rewind recovery engine.
// It defines the audit event and file version records sourced from the
// content platform, the per-file timeline the engine reconstructs from
// them, and the tagged outcome values the batch layer aggregates.
package types

import (
	"errors"
	"fmt"
	"time"
)

// EventType identifies an audit event kind in the platform's admin log.
type EventType string

// Event types the recovery engine understands.
const (
	EventUpload   EventType = "UPLOAD"
	EventEdit     EventType = "EDIT"
	EventDelete   EventType = "DELETE"
	EventUndelete EventType = "UNDELETE"
	EventMove     EventType = "MOVE"
)

// DefaultEventTypes is the event-type set queried when none is configured.
var DefaultEventTypes = []EventType{EventUpload, EventEdit, EventDelete, EventUndelete, EventMove}

// ParseEventType parses a string into an EventType.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventUpload, EventEdit, EventDelete, EventUndelete, EventMove:
		return EventType(s), nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Actor identifies the account that performed an event.
type Actor struct {
	// ID is the platform user id.
	ID string `json:"id"`

	// Login is the account email address.
	Login string `json:"login"`
}

// Item identifies the object an event acted on.
type Item struct {
	// Type is the item kind as reported by the platform ("file", "folder").
	Type string `json:"item_type"`

	// ID is the platform item id.
	ID string `json:"item_id"`

	// Name is the item name at event time.
	Name string `json:"item_name"`
}

// Event is one admin audit-log entry, immutable and sourced verbatim
// from the platform. Entries missing an item id, an event type, or a
// timestamp are rejected at the adapter boundary and never reach here.
type Event struct {
	// Type is the audit event kind.
	Type EventType `json:"event_type"`

	// CreatedBy is the account that performed the action.
	CreatedBy Actor `json:"created_by"`

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time `json:"created_at"`

	// Source is the item the event acted on.
	Source Item `json:"source"`
}

// Validate reports whether the event carries the fields the engine
// depends on. Malformed log entries are dropped by the adapter rather
// than propagated as partial records.
func (e Event) Validate() error {
	if e.Type == "" {
		return errors.New("event missing type")
	}
	if e.Source.ID == "" {
		return errors.New("event missing item id")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("event missing timestamp")
	}
	return nil
}

// EventSummary is the per-timeline view of an event: kind and time only.
// The full actor/item metadata lives on the owning FileTimeline.
type EventSummary struct {
	EventType EventType `json:"event_type"`
	EventTime time.Time `json:"event_time"`
}

// Version is one historical version of a file as reported by the
// platform's version store. Immutable; ordering is whatever the platform
// returned and the engine never re-sorts it.
type Version struct {
	VersionID   string    `json:"version_id"`
	VersionName string    `json:"version_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileTimeline is the engine-internal reconstruction of one file's
// relevant event history plus its fetched version history.
//
// FileID is reassigned exactly once, to the platform-issued restored id,
// when trash reconciliation succeeds; Events, actor fields, and ItemName
// stay attached to the original logical file. Events is append-only
// during grouping and is never reordered: the last element determines
// the file's lifecycle state (trashed vs. live).
type FileTimeline struct {
	// FileID is the id used for version and promote calls. It starts as
	// the item id at first observation and is remapped on restore.
	FileID string `json:"file_id"`

	// CreatedByUserID is the id of the actor whose events were kept.
	CreatedByUserID string `json:"event_created_by_user_id"`

	// CreatedByLogin is the email of the actor whose events were kept.
	CreatedByLogin string `json:"event_created_by_login"`

	// ItemType is the item kind, "file" for anything the engine keeps.
	ItemType string `json:"item_type"`

	// ItemName is the item name at first observation.
	ItemName string `json:"item_name"`

	// Events is the ordered per-file event history, in arrival order.
	Events []EventSummary `json:"events"`

	// PreviousVersions is the fetched version history, platform order.
	PreviousVersions []Version `json:"previous_versions"`

	// RestoredFileID is set when reconciliation restored the file and
	// the platform issued a new identity.
	RestoredFileID string `json:"restored_file_id,omitempty"`
}

// LastEventType returns the type of the most recent event, or "" for an
// empty timeline.
func (t *FileTimeline) LastEventType() EventType {
	if len(t.Events) == 0 {
		return ""
	}
	return t.Events[len(t.Events)-1].EventType
}

// Trashed reports whether the timeline's last event is a deletion.
func (t *FileTimeline) Trashed() bool {
	return t.LastEventType() == EventDelete
}

// Status classifies the terminal state of one file's recovery.
type Status string

// Per-file recovery outcomes.
const (
	// StatusPromoted means a prior version was promoted to current.
	StatusPromoted Status = "promoted"

	// StatusSkipped means the file was skipped with a reason and the
	// batch continued.
	StatusSkipped Status = "skipped"

	// StatusUnrecoverable means the pipeline completed but no version
	// could be promoted (no candidates, or promotion failed).
	StatusUnrecoverable Status = "unrecoverable"

	// StatusFailed means a non-skip error was captured for the file.
	StatusFailed Status = "failed"
)

// SkipReason explains why a file was skipped without failing the batch.
type SkipReason string

// Skip reasons surfaced in the run summary.
const (
	// SkipNotFound: the item is gone (purged, or outside the reachable
	// trash window).
	SkipNotFound SkipReason = "not_found"

	// SkipForbidden: the item was trashed or untrashed outside the
	// queried window, or the session lacks permission.
	SkipForbidden SkipReason = "forbidden"

	// SkipNoVersions: the file has no prior versions to recover from.
	// A valid terminal state, not an error.
	SkipNoVersions SkipReason = "no_versions"
)

// Outcome is the tagged per-file result aggregated by the batch layer.
// Exactly one of the terminal classifications applies; Err is populated
// only for StatusFailed.
type Outcome struct {
	// FileID is the original (pre-restore) file id.
	FileID string `json:"file_id"`

	// ItemName is the file name, for operator-facing reporting.
	ItemName string `json:"item_name,omitempty"`

	// Status is the terminal classification.
	Status Status `json:"status"`

	// Reason is set when Status is StatusSkipped or StatusUnrecoverable.
	Reason SkipReason `json:"reason,omitempty"`

	// Restored reports whether trash reconciliation restored the file.
	Restored bool `json:"restored,omitempty"`

	// RestoredFileID is the platform-issued identity after restore.
	RestoredFileID string `json:"restored_file_id,omitempty"`

	// VersionsFetched is the number of prior versions retrieved.
	VersionsFetched int `json:"versions_fetched"`

	// ChosenVersionID is the version selected for promotion.
	ChosenVersionID string `json:"chosen_version_id,omitempty"`

	// Delta is attack start minus the chosen version's creation time.
	Delta time.Duration `json:"delta,omitempty"`

	// Err holds a non-skip failure. Not serialized.
	Err error `json:"-"`
}
