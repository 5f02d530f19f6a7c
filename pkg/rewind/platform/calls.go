package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// EventQuery bounds one admin event page request.
type EventQuery struct {
	// CreatedAfter and CreatedBefore bound the audit window.
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// EventTypes restricts the query server-side. Empty queries all.
	EventTypes []types.EventType

	// Cursor is the opaque stream position from the previous page.
	// Empty starts from the beginning of the window.
	Cursor string

	// Limit is the page size.
	Limit int
}

// EventPage is one page of the admin event stream.
type EventPage struct {
	// Entries are the events in log order.
	Entries []types.Event

	// NextCursor is the stream position for the next page. The stream
	// may report a non-empty cursor alongside an empty page at its end.
	NextCursor string

	// ChunkSize is the entry count the platform reported for this page.
	ChunkSize int
}

// RestoredItem is the identity the platform assigned when restoring a
// trashed item. The id may differ from the trashed item's id.
type RestoredItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// wireEvent is the wire shape of one audit log entry. Timestamps arrive
// as ISO-8601 strings and are parsed at this boundary.
type wireEvent struct {
	EventType string `json:"event_type"`
	CreatedAt string `json:"created_at"`
	CreatedBy struct {
		ID    string `json:"id"`
		Login string `json:"login"`
	} `json:"created_by"`
	Source struct {
		ItemType string `json:"item_type"`
		ItemID   string `json:"item_id"`
		ItemName string `json:"item_name"`
	} `json:"source"`
}

// wireEventPage is the wire shape of an event stream page. The stream
// position is documented as an opaque token; it arrives as a JSON number
// on this platform, so it is decoded loosely and kept as a string.
type wireEventPage struct {
	Entries            []wireEvent     `json:"entries"`
	NextStreamPosition json.RawMessage `json:"next_stream_position"`
	ChunkSize          int             `json:"chunk_size"`
}

// decodeCursor normalizes the next stream position to an opaque string.
func decodeCursor(raw json.RawMessage) string {
	s := strings.Trim(string(raw), `"`)
	switch s {
	case "", "null", "0":
		return ""
	}
	return s
}

// toEvent converts a wire entry to a domain event, rejecting malformed
// entries rather than propagating partial records.
func (w wireEvent) toEvent() (types.Event, error) {
	createdAt, err := time.Parse(time.RFC3339, w.CreatedAt)
	if err != nil {
		return types.Event{}, fmt.Errorf("event timestamp %q: %w", w.CreatedAt, err)
	}

	ev := types.Event{
		Type:      types.EventType(w.EventType),
		CreatedAt: createdAt,
		CreatedBy: types.Actor{ID: w.CreatedBy.ID, Login: w.CreatedBy.Login},
		Source: types.Item{
			Type: w.Source.ItemType,
			ID:   w.Source.ItemID,
			Name: w.Source.ItemName,
		},
	}
	if err := ev.Validate(); err != nil {
		return types.Event{}, err
	}
	return ev, nil
}

// GetEvents fetches one page of the enterprise admin event stream.
// Malformed entries are dropped with a warning; the page's reported
// chunk size is preserved so pagination still terminates correctly.
func (c *Client) GetEvents(ctx context.Context, q EventQuery) (*EventPage, error) {
	params := url.Values{
		"stream_type":    {"admin_logs"},
		"created_after":  {q.CreatedAfter.Format(time.RFC3339)},
		"created_before": {q.CreatedBefore.Format(time.RFC3339)},
	}
	if len(q.EventTypes) > 0 {
		names := make([]string, len(q.EventTypes))
		for i, et := range q.EventTypes {
			names[i] = string(et)
		}
		params.Set("event_type", strings.Join(names, ","))
	}
	if q.Cursor != "" {
		params.Set("stream_position", q.Cursor)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var wire wireEventPage
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/events?"+params.Encode(), nil, false, &wire); err != nil {
		return nil, err
	}

	page := &EventPage{
		Entries:    make([]types.Event, 0, len(wire.Entries)),
		NextCursor: decodeCursor(wire.NextStreamPosition),
		ChunkSize:  wire.ChunkSize,
	}
	for _, we := range wire.Entries {
		ev, err := we.toEvent()
		if err != nil {
			c.logger.Warn("dropping malformed audit entry", "error", err)
			continue
		}
		page.Entries = append(page.Entries, ev)
	}
	return page, nil
}

// RestoreItem restores a trashed file, returning the identity the
// platform assigned to it. Fails with a 404 APIError when the item was
// purged and a 403 when it is outside the caller's reach.
func (c *Client) RestoreItem(ctx context.Context, fileID string) (*RestoredItem, error) {
	var restored RestoredItem
	err := c.do(ctx, http.MethodPost, c.baseURL+"/files/"+url.PathEscape(fileID),
		strings.NewReader("{}"), true, &restored)
	if err != nil {
		return nil, err
	}
	return &restored, nil
}

// wireVersion is the wire shape of one stored file version.
type wireVersion struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ListVersions retrieves a file's stored versions in the order the
// platform reports them. An empty list is a valid result: the file
// simply has no prior versions.
func (c *Client) ListVersions(ctx context.Context, fileID string) ([]types.Version, error) {
	var wire struct {
		Entries []wireVersion `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(fileID)+"/versions", nil, true, &wire)
	if err != nil {
		return nil, err
	}

	versions := make([]types.Version, 0, len(wire.Entries))
	for _, wv := range wire.Entries {
		createdAt, err := time.Parse(time.RFC3339, wv.CreatedAt)
		if err != nil {
			c.logger.Warn("dropping version with malformed timestamp",
				"file_id", fileID, "version_id", wv.ID, "created_at", wv.CreatedAt)
			continue
		}
		versions = append(versions, types.Version{
			VersionID:   wv.ID,
			VersionName: wv.Name,
			CreatedAt:   createdAt,
		})
	}
	return versions, nil
}

// PromoteVersion promotes a stored version to the file's current
// content, returning the id of the new version the platform created.
// The version history itself is not altered.
func (c *Client) PromoteVersion(ctx context.Context, fileID, versionID string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"type": "file_version",
		"id":   versionID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding promote request: %w", err)
	}

	var promoted struct {
		ID string `json:"id"`
	}
	err = c.do(ctx, http.MethodPost,
		c.baseURL+"/files/"+url.PathEscape(fileID)+"/versions/current",
		bytes.NewReader(reqBody), true, &promoted)
	if err != nil {
		return "", err
	}
	return promoted.ID, nil
}
