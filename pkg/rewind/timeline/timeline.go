// Package timeline reconstructs per-file event histories from the flat
// admin event list. Events are filtered by actor, event type, and item
// type, then grouped by item id into FileTimelines that preserve
// arrival order exactly; nothing here ever re-sorts an event list.
package timeline

import (
	"io"
	"sort"
	"sync"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Filter selects which events contribute to timelines. All three
// criteria must match for an event to be kept.
type Filter struct {
	// ActorLogin is the email of the compromised account.
	ActorLogin string

	// EventTypes is the event-type allow list.
	EventTypes []types.EventType

	// ItemTypes is the item-type allow list, normally just "file".
	ItemTypes []string
}

// match reports whether the event passes the filter.
func (f Filter) match(ev types.Event) bool {
	if ev.CreatedBy.Login != f.ActorLogin {
		return false
	}
	if !containsEventType(f.EventTypes, ev.Type) {
		return false
	}
	return containsString(f.ItemTypes, ev.Source.Type)
}

func containsEventType(set []types.EventType, et types.EventType) bool {
	for _, candidate := range set {
		if candidate == et {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// Set holds the grouped timelines keyed by file id, preserving
// first-seen order for iteration. Rekeying on restore is a single
// atomic replace under the set's lock, never a partial mutation under
// a stale key.
type Set struct {
	mu    sync.RWMutex
	byID  map[string]*types.FileTimeline
	order []string
}

// NewSet creates an empty timeline set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*types.FileTimeline)}
}

// Len returns the number of timelines.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Get returns the timeline for a file id.
func (s *Set) Get(id string) (*types.FileTimeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tl, ok := s.byID[id]
	return tl, ok
}

// IDs returns the file ids in first-seen order. The returned slice is a
// copy; mutating it does not affect the set.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Timelines returns the timelines in first-seen order.
func (s *Set) Timelines() []*types.FileTimeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.FileTimeline, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// add creates or extends the timeline for one kept event.
func (s *Set) add(ev types.Event) *types.FileTimeline {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := types.EventSummary{EventType: ev.Type, EventTime: ev.CreatedAt}

	if tl, ok := s.byID[ev.Source.ID]; ok {
		tl.Events = append(tl.Events, summary)
		return tl
	}

	tl := &types.FileTimeline{
		FileID:           ev.Source.ID,
		CreatedByUserID:  ev.CreatedBy.ID,
		CreatedByLogin:   ev.CreatedBy.Login,
		ItemType:         ev.Source.Type,
		ItemName:         ev.Source.Name,
		Events:           []types.EventSummary{summary},
		PreviousVersions: []types.Version{},
	}
	s.byID[ev.Source.ID] = tl
	s.order = append(s.order, ev.Source.ID)
	return tl
}

// Rekey remaps a timeline from its original id to the platform-issued
// restored id as one atomic replace: the old key is removed and the new
// key inserted with the same timeline value, whose FileID has already
// been reassigned. A no-op if oldID is absent or the ids are equal.
func (s *Set) Rekey(oldID, newID string) {
	if oldID == newID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.byID[oldID]
	if !ok {
		return
	}
	delete(s.byID, oldID)
	s.byID[newID] = tl

	for i, id := range s.order {
		if id == oldID {
			s.order[i] = newID
			break
		}
	}
}

// Map returns the timelines keyed by current file id, for snapshot
// serialization.
func (s *Set) Map() map[string]*types.FileTimeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*types.FileTimeline, len(s.byID))
	for id, tl := range s.byID {
		out[id] = tl
	}
	return out
}

// FromMap rebuilds a Set from a snapshot mapping. First-seen order does
// not survive the round trip, so a rebuilt set iterates in sorted id
// order instead.
func FromMap(m map[string]*types.FileTimeline) *Set {
	s := NewSet()
	for id, tl := range m {
		s.byID[id] = tl
		s.order = append(s.order, id)
	}
	sort.Strings(s.order)
	return s
}

// Group filters events and groups the keepers into per-file timelines,
// in input order. When audit is non-nil, one CSV row per kept event is
// written to it as an operator-facing side channel; audit failures are
// logged and do not fail grouping.
func Group(events []types.Event, filter Filter, audit io.Writer) *Set {
	logger := logging.Get("timeline")
	set := NewSet()

	var auditor *auditWriter
	if audit != nil {
		auditor = newAuditWriter(audit)
	}

	kept := 0
	for _, ev := range events {
		if !filter.match(ev) {
			continue
		}
		set.add(ev)
		kept++

		if auditor != nil {
			if err := auditor.write(ev); err != nil {
				logger.Warn("audit row not written", "item_id", ev.Source.ID, "error", err)
				auditor = nil
			}
		}
	}

	if auditor != nil {
		if err := auditor.flush(); err != nil {
			logger.Warn("audit flush failed", "error", err)
		}
	}

	logger.Info("events grouped",
		"kept", kept,
		"dropped", len(events)-kept,
		"files", set.Len(),
		"actor", filter.ActorLogin)
	return set
}
