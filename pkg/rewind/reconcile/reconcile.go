// Package reconcile resolves trashed timelines against the platform's
// trash. A timeline whose last event is a deletion is restored and
// remapped to the identity the platform assigned; files already purged
// or out of reach become per-file skips, never batch failures.
package reconcile

import (
	"context"
	"fmt"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/platform"
	"github.com/jamesainslie/rewind/pkg/rewind/timeline"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Restorer restores a trashed item. Satisfied by *platform.Client.
type Restorer interface {
	RestoreItem(ctx context.Context, fileID string) (*platform.RestoredItem, error)
}

// Result is the tagged outcome of reconciling one timeline.
type Result struct {
	// Restored is true when the file was pulled out of the trash.
	Restored bool

	// RestoredID is the platform-issued identity after restore.
	RestoredID string

	// Skipped is true when the file cannot be reconciled; Reason says why.
	Skipped bool
	Reason  types.SkipReason
}

// Reconciler restores trashed timelines and rekeys them in their set.
type Reconciler struct {
	restorer Restorer
	logger   *logging.Logger
}

// New creates a Reconciler over the given restorer.
func New(restorer Restorer) *Reconciler {
	return &Reconciler{
		restorer: restorer,
		logger:   logging.Get("reconcile"),
	}
}

// Reconcile examines the timeline's most recent event. If it is a
// deletion, the file is restored and the timeline remapped to the new
// identity: FileID is reassigned and the set is rekeyed atomically,
// while events, actor, and name stay attached to the original logical
// file. NotFound and Forbidden resolve to a Skip result, which also
// makes the call idempotent at the timeline level: re-running against
// an already-restored timeline yields the same Skip, not a fatal error.
//
// Timelines whose last event is not a deletion pass through unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, set *timeline.Set, tl *types.FileTimeline) (Result, error) {
	if !tl.Trashed() {
		return Result{}, nil
	}

	originalID := tl.FileID
	restored, err := r.restorer.RestoreItem(ctx, originalID)
	switch {
	case err == nil:
	case platform.IsNotFound(err):
		r.logger.Warn("file not restorable, already purged",
			"file_id", originalID, "name", tl.ItemName)
		return Result{Skipped: true, Reason: types.SkipNotFound}, nil
	case platform.IsForbidden(err):
		r.logger.Warn("file not restorable, outside queried window or not permitted",
			"file_id", originalID, "name", tl.ItemName)
		return Result{Skipped: true, Reason: types.SkipForbidden}, nil
	default:
		return Result{}, fmt.Errorf("restoring file %s: %w", originalID, err)
	}

	tl.RestoredFileID = restored.ID
	tl.FileID = restored.ID
	if set != nil {
		set.Rekey(originalID, restored.ID)
	}

	r.logger.Info("file restored from trash",
		"file_id", originalID, "restored_file_id", restored.ID, "name", restored.Name)
	return Result{Restored: true, RestoredID: restored.ID}, nil
}
