// Package versions retrieves per-file version histories from the
// platform's version store, using the possibly-reassigned file id a
// timeline carries after trash reconciliation.
package versions

import (
	"context"
	"fmt"

	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/platform"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Lister lists a file's stored versions. Satisfied by *platform.Client.
type Lister interface {
	ListVersions(ctx context.Context, fileID string) ([]types.Version, error)
}

// Result is the tagged outcome of fetching one file's history.
type Result struct {
	// Versions is the history in platform order. May be empty: a file
	// with no prior versions is a valid "no recovery candidate" state,
	// not an error.
	Versions []types.Version

	// Skipped is true when the platform refused the lookup for this
	// file; Reason says why. Sibling fetches are unaffected.
	Skipped bool
	Reason  types.SkipReason
}

// Fetcher attaches version histories to timelines.
type Fetcher struct {
	lister Lister
	logger *logging.Logger
}

// New creates a Fetcher over the given lister.
func New(lister Lister) *Fetcher {
	return &Fetcher{
		lister: lister,
		logger: logging.Get("versions"),
	}
}

// Fetch retrieves the timeline's version history via its current FileID
// and attaches it. NotFound and Forbidden resolve to a per-file Skip;
// other errors propagate for the batch layer to capture.
func (f *Fetcher) Fetch(ctx context.Context, tl *types.FileTimeline) (Result, error) {
	versions, err := f.lister.ListVersions(ctx, tl.FileID)
	switch {
	case err == nil:
	case platform.IsNotFound(err):
		f.logger.Warn("versions unavailable, file gone",
			"file_id", tl.FileID, "name", tl.ItemName)
		return Result{Skipped: true, Reason: types.SkipNotFound}, nil
	case platform.IsForbidden(err):
		f.logger.Warn("versions unavailable, not permitted",
			"file_id", tl.FileID, "name", tl.ItemName)
		return Result{Skipped: true, Reason: types.SkipForbidden}, nil
	default:
		return Result{}, fmt.Errorf("listing versions for file %s: %w", tl.FileID, err)
	}

	tl.PreviousVersions = versions
	f.logger.Info("version history retrieved",
		"file_id", tl.FileID, "name", tl.ItemName, "versions", len(versions))
	return Result{Versions: versions}, nil
}
