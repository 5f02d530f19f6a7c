package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/rewind/pkg/rewind/platform"
	"github.com/jamesainslie/rewind/pkg/rewind/timeline"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// fakeRestorer maps file ids to scripted responses.
type fakeRestorer struct {
	restored map[string]*platform.RestoredItem
	errs     map[string]error
	calls    []string
}

func (f *fakeRestorer) RestoreItem(_ context.Context, fileID string) (*platform.RestoredItem, error) {
	f.calls = append(f.calls, fileID)
	if err, ok := f.errs[fileID]; ok {
		return nil, err
	}
	if item, ok := f.restored[fileID]; ok {
		return item, nil
	}
	return nil, errors.New("unexpected call")
}

func trashedTimeline(id string) *types.FileTimeline {
	now := time.Now().UTC()
	return &types.FileTimeline{
		FileID:   id,
		ItemName: "doc",
		Events: []types.EventSummary{
			{EventType: types.EventUpload, EventTime: now},
			{EventType: types.EventDelete, EventTime: now.Add(time.Minute)},
		},
	}
}

func liveTimeline(id string) *types.FileTimeline {
	now := time.Now().UTC()
	return &types.FileTimeline{
		FileID:   id,
		ItemName: "doc",
		Events: []types.EventSummary{
			{EventType: types.EventUpload, EventTime: now},
			{EventType: types.EventEdit, EventTime: now.Add(time.Minute)},
		},
	}
}

func setWith(tls ...*types.FileTimeline) *timeline.Set {
	m := make(map[string]*types.FileTimeline, len(tls))
	for _, tl := range tls {
		m[tl.FileID] = tl
	}
	return timeline.FromMap(m)
}

func TestReconcileLiveFilePassesThrough(t *testing.T) {
	restorer := &fakeRestorer{}
	tl := liveTimeline("f1")

	res, err := New(restorer).Reconcile(context.Background(), setWith(tl), tl)
	require.NoError(t, err)
	assert.False(t, res.Restored)
	assert.False(t, res.Skipped)
	assert.Empty(t, restorer.calls, "live files must not be restored")
	assert.Equal(t, "f1", tl.FileID)
}

func TestReconcileRestoresTrashedFile(t *testing.T) {
	restorer := &fakeRestorer{restored: map[string]*platform.RestoredItem{
		"f1": {ID: "f1-new", Name: "doc"},
	}}
	tl := trashedTimeline("f1")
	set := setWith(tl)

	res, err := New(restorer).Reconcile(context.Background(), set, tl)
	require.NoError(t, err)
	assert.True(t, res.Restored)
	assert.Equal(t, "f1-new", res.RestoredID)

	// The timeline carries the new identity and the set is rekeyed.
	assert.Equal(t, "f1-new", tl.FileID)
	assert.Equal(t, "f1-new", tl.RestoredFileID)
	_, oldOK := set.Get("f1")
	assert.False(t, oldOK, "old key must be gone after rekey")
	got, newOK := set.Get("f1-new")
	require.True(t, newOK)
	assert.Same(t, tl, got)

	// Events and name stay attached to the original logical file.
	assert.Len(t, tl.Events, 2)
	assert.Equal(t, "doc", tl.ItemName)
}

func TestReconcileSkips(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason types.SkipReason
	}{
		{
			name:       "purged file skips not_found",
			err:        &platform.APIError{Status: http.StatusNotFound, Code: "not_found"},
			wantReason: types.SkipNotFound,
		},
		{
			name:       "out of reach file skips forbidden",
			err:        &platform.APIError{Status: http.StatusForbidden, Code: "forbidden_by_policy"},
			wantReason: types.SkipForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restorer := &fakeRestorer{errs: map[string]error{"f1": tt.err}}
			tl := trashedTimeline("f1")
			set := setWith(tl)

			res, err := New(restorer).Reconcile(context.Background(), set, tl)
			require.NoError(t, err, "refusals resolve to skips, not errors")
			assert.True(t, res.Skipped)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Equal(t, "f1", tl.FileID, "identity must be untouched on skip")
		})
	}
}

func TestReconcilePropagatesOtherErrors(t *testing.T) {
	boom := &platform.APIError{Status: http.StatusInternalServerError}
	restorer := &fakeRestorer{errs: map[string]error{"f1": boom}}
	tl := trashedTimeline("f1")

	_, err := New(restorer).Reconcile(context.Background(), setWith(tl), tl)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestReconcileNilSet(t *testing.T) {
	restorer := &fakeRestorer{restored: map[string]*platform.RestoredItem{
		"f1": {ID: "f1-new", Name: "doc"},
	}}
	tl := trashedTimeline("f1")

	res, err := New(restorer).Reconcile(context.Background(), nil, tl)
	require.NoError(t, err)
	assert.True(t, res.Restored)
	assert.Equal(t, "f1-new", tl.FileID)
}
