// Package stream reads the platform's paginated admin event log. It
// walks the opaque stream cursor until the log is exhausted and returns
// a flat, ordered event list; the log is open-ended, so no total count
// is ever assumed.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/platform"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// DefaultPageSize is the page size requested per event stream call.
const DefaultPageSize = 500

// EventSource fetches one admin event page. Satisfied by
// *platform.Client; tests substitute fakes.
type EventSource interface {
	GetEvents(ctx context.Context, q platform.EventQuery) (*platform.EventPage, error)
}

// Window bounds an audit query: [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Reader accumulates the admin event stream for a time window.
type Reader struct {
	source   EventSource
	pageSize int
	logger   *logging.Logger
}

// NewReader creates a Reader over the given event source. pageSize <= 0
// uses DefaultPageSize.
func NewReader(source EventSource, pageSize int) *Reader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Reader{
		source:   source,
		pageSize: pageSize,
		logger:   logging.Get("stream"),
	}
}

// Fetch pulls every admin event in the window matching eventTypes,
// following the stream cursor until exhaustion. Pagination terminates
// when the reported cursor is empty OR a page carries zero entries;
// both are checked because the platform may return a live cursor
// alongside an empty page at stream end.
//
// Errors here are fatal for the run: there is no per-item recovery
// before the stream has been read.
func (r *Reader) Fetch(ctx context.Context, window Window, eventTypes []types.EventType) ([]types.Event, error) {
	var (
		events []types.Event
		cursor string
		pages  int
	)

	for {
		page, err := r.source.GetEvents(ctx, platform.EventQuery{
			CreatedAfter:  window.Start,
			CreatedBefore: window.End,
			EventTypes:    eventTypes,
			Cursor:        cursor,
			Limit:         r.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching event page %d: %w", pages+1, err)
		}
		pages++

		events = append(events, page.Entries...)
		cursor = page.NextCursor

		if cursor == "" || page.ChunkSize == 0 {
			break
		}
	}

	r.logger.Info("event stream read",
		"events", len(events),
		"pages", pages,
		"start", window.Start.Format(time.RFC3339),
		"end", window.End.Format(time.RFC3339))
	return events, nil
}
