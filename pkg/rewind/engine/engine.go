// Package engine orchestrates a recovery run: audit-event ingestion,
// per-file timeline reconstruction, trash reconciliation, version
// history retrieval, and nearest-prior-version promotion, fanned out
// across files by the batch executor.
//
// Within one timeline, the stages run strictly in order; across
// timelines, the batch executor interleaves freely. Only failures
// before batching starts (configuration, authentication, reading the
// event stream) are fatal; everything per-file resolves to a tagged
// outcome and the run completes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jamesainslie/rewind/pkg/rewind/batch"
	"github.com/jamesainslie/rewind/pkg/rewind/eventcache"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/platform"
	"github.com/jamesainslie/rewind/pkg/rewind/reconcile"
	"github.com/jamesainslie/rewind/pkg/rewind/selector"
	"github.com/jamesainslie/rewind/pkg/rewind/snapshot"
	"github.com/jamesainslie/rewind/pkg/rewind/stream"
	"github.com/jamesainslie/rewind/pkg/rewind/timeline"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
	"github.com/jamesainslie/rewind/pkg/rewind/versions"
)

// API is the platform surface the engine consumes. Satisfied by
// *platform.Client; tests substitute fakes.
type API interface {
	GetEvents(ctx context.Context, q platform.EventQuery) (*platform.EventPage, error)
	RestoreItem(ctx context.Context, fileID string) (*platform.RestoredItem, error)
	ListVersions(ctx context.Context, fileID string) ([]types.Version, error)
	PromoteVersion(ctx context.Context, fileID, versionID string) (string, error)
}

// Options configures a recovery run.
type Options struct {
	// Window bounds the audit query.
	Window stream.Window

	// AttackStart is the suspected compromise time driving selection.
	AttackStart time.Time

	// ActorLogin filters events to the compromised account.
	ActorLogin string

	// EventTypes and ItemTypes filter the audit stream.
	EventTypes []types.EventType
	ItemTypes  []string

	// Policy selects the version selection semantics.
	Policy selector.Policy

	// PageSize is the event stream page size.
	PageSize int

	// Batch tunes the worker pool.
	Batch batch.Options

	// DryRun skips promotion calls; selection still runs and reports.
	DryRun bool

	// GroupSnapshotPath and VersionSnapshotPath are the two JSON
	// checkpoints. Empty disables the checkpoint.
	GroupSnapshotPath   string
	VersionSnapshotPath string

	// Audit receives the CSV trail of kept events. Nil disables it.
	Audit io.Writer

	// Cache is the optional local event cache. Nil disables caching.
	Cache *eventcache.Store
}

// Summary is the aggregate result of a run, with one Outcome per file
// so callers can build operator-facing reports.
type Summary struct {
	// Outcomes holds one terminal result per file, first-seen order.
	Outcomes []types.Outcome

	// EventsRead is the total admin events ingested before filtering.
	EventsRead int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Counts tallies outcomes by terminal state.
type Counts struct {
	Files         int
	Restored      int
	Versioned     int
	Promoted      int
	Unrecoverable int
	Failed        int
	Skipped       map[string]int
}

// Counts aggregates the summary's outcomes.
func (s *Summary) Counts() Counts {
	c := Counts{Files: len(s.Outcomes), Skipped: make(map[string]int)}
	for _, o := range s.Outcomes {
		if o.Restored {
			c.Restored++
		}
		if o.VersionsFetched > 0 {
			c.Versioned++
		}
		switch o.Status {
		case types.StatusPromoted:
			c.Promoted++
		case types.StatusSkipped:
			c.Skipped[string(o.Reason)]++
		case types.StatusUnrecoverable:
			c.Unrecoverable++
		case types.StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Engine runs the recovery pipeline against one platform session.
type Engine struct {
	api    API
	opts   Options
	logger *logging.Logger
}

// New creates an Engine. The API must already be authenticated; an
// unauthenticated session fails the run before any batching starts.
func New(api API, opts Options) *Engine {
	if len(opts.EventTypes) == 0 {
		opts.EventTypes = types.DefaultEventTypes
	}
	if len(opts.ItemTypes) == 0 {
		opts.ItemTypes = []string{"file"}
	}
	if opts.Policy == "" {
		opts.Policy = selector.DefaultPolicy
	}
	if opts.AttackStart.IsZero() {
		opts.AttackStart = opts.Window.Start
	}
	return &Engine{
		api:    api,
		opts:   opts,
		logger: logging.Get("engine"),
	}
}

// Run executes the full pipeline and returns the per-file summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()

	set, eventsRead, err := e.Ingest(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{EventsRead: eventsRead}
	if set.Len() == 0 {
		// Nothing to do is a valid terminal state, not a failure.
		e.logger.Info("no matching file events in window, nothing to recover")
		summary.Elapsed = time.Since(started)
		return summary, nil
	}

	outcomes := e.Reconstruct(ctx, set)
	e.PromoteAll(ctx, set, outcomes)

	summary.Outcomes = flatten(set, outcomes)
	summary.Elapsed = time.Since(started)
	return summary, nil
}

// Ingest reads the admin event stream for the window, groups the
// filtered events into per-file timelines, and writes the grouping
// checkpoint. Errors here abort the run.
func (e *Engine) Ingest(ctx context.Context) (*timeline.Set, int, error) {
	events, err := e.fetchEvents(ctx)
	if err != nil {
		return nil, 0, err
	}

	set := timeline.Group(events, timeline.Filter{
		ActorLogin: e.opts.ActorLogin,
		EventTypes: e.opts.EventTypes,
		ItemTypes:  e.opts.ItemTypes,
	}, e.opts.Audit)

	if e.opts.GroupSnapshotPath != "" {
		if err := snapshot.Write(e.opts.GroupSnapshotPath, set.Map()); err != nil {
			return nil, 0, fmt.Errorf("writing grouping checkpoint: %w", err)
		}
	}

	return set, len(events), nil
}

// fetchEvents pulls the window's events, via the cache when one is
// configured and warm.
func (e *Engine) fetchEvents(ctx context.Context) ([]types.Event, error) {
	if e.opts.Cache != nil {
		events, err := e.opts.Cache.Get(e.opts.Window.Start, e.opts.Window.End, e.opts.EventTypes)
		if err == nil {
			e.logger.Info("event stream served from local cache", "events", len(events))
			return events, nil
		}
		if !errors.Is(err, eventcache.ErrNotFound) {
			e.logger.Warn("event cache read failed, falling back to platform", "error", err)
		}
	}

	reader := stream.NewReader(e.api, e.opts.PageSize)
	events, err := reader.Fetch(ctx, e.opts.Window, e.opts.EventTypes)
	if err != nil {
		return nil, err
	}

	if e.opts.Cache != nil {
		if err := e.opts.Cache.Put(e.opts.Window.Start, e.opts.Window.End, e.opts.EventTypes, events); err != nil {
			e.logger.Warn("event cache write failed", "error", err)
		}
	}
	return events, nil
}

// Reconstruct runs trash reconciliation and version fetch for every
// timeline through the batch executor, then writes the version-fetch
// checkpoint. Per-file failures land in the returned outcome map.
func (e *Engine) Reconstruct(ctx context.Context, set *timeline.Set) map[string]*types.Outcome {
	reconciler := reconcile.New(e.api)
	fetcher := versions.New(e.api)

	ids := set.IDs()
	outcomes := make(map[string]*types.Outcome, len(ids))
	for _, id := range ids {
		tl, _ := set.Get(id)
		outcomes[id] = &types.Outcome{FileID: id, ItemName: tl.ItemName}
	}

	results := batch.Run(ctx, ids, func(ctx context.Context, id string) (*types.Outcome, error) {
		return e.reconstructOne(ctx, reconciler, fetcher, set, id)
	}, e.withRetry())

	for _, res := range results {
		id := ids[res.Index]
		if res.Err != nil {
			outcomes[id].Status = types.StatusFailed
			outcomes[id].Err = res.Err
			e.logger.Error("file reconstruction failed", "file_id", id, "error", res.Err)
			continue
		}
		*outcomes[id] = *res.Value
	}

	if e.opts.VersionSnapshotPath != "" {
		if err := snapshot.Write(e.opts.VersionSnapshotPath, set.Map()); err != nil {
			e.logger.Error("writing version checkpoint failed", "error", err)
		}
	}
	return outcomes
}

// reconstructOne reconciles one timeline and fetches its versions. The
// two steps are strictly sequential for a given file.
func (e *Engine) reconstructOne(ctx context.Context, reconciler *reconcile.Reconciler, fetcher *versions.Fetcher, set *timeline.Set, id string) (*types.Outcome, error) {
	tl, ok := set.Get(id)
	if !ok {
		return nil, fmt.Errorf("timeline %s missing from set", id)
	}

	outcome := &types.Outcome{FileID: id, ItemName: tl.ItemName}

	rec, err := reconciler.Reconcile(ctx, set, tl)
	if err != nil {
		return nil, err
	}
	if rec.Skipped {
		outcome.Status = types.StatusSkipped
		outcome.Reason = rec.Reason
		return outcome, nil
	}
	outcome.Restored = rec.Restored
	outcome.RestoredFileID = rec.RestoredID

	ver, err := fetcher.Fetch(ctx, tl)
	if err != nil {
		return nil, err
	}
	if ver.Skipped {
		outcome.Status = types.StatusSkipped
		outcome.Reason = ver.Reason
		return outcome, nil
	}
	outcome.VersionsFetched = len(ver.Versions)
	return outcome, nil
}

// candidate pairs a surviving timeline with its outcome record.
type candidate struct {
	tl      *types.FileTimeline
	outcome *types.Outcome
}

// PromoteAll selects and promotes a recovery candidate for every
// timeline that survived reconstruction, updating outcomes in place.
// Outcomes are keyed by original file id; restored timelines carry
// their reassigned id on FileID, so pairing happens here, before the
// batch fan-out, never under a stale key inside a worker.
func (e *Engine) PromoteAll(ctx context.Context, set *timeline.Set, outcomes map[string]*types.Outcome) {
	var pending []candidate
	for originalID, outcome := range outcomes {
		if outcome.Status == types.StatusSkipped || outcome.Status == types.StatusFailed {
			continue
		}
		currentID := originalID
		if outcome.RestoredFileID != "" {
			currentID = outcome.RestoredFileID
		}
		if tl, ok := set.Get(currentID); ok {
			pending = append(pending, candidate{tl: tl, outcome: outcome})
		}
	}

	results := batch.Run(ctx, pending, func(ctx context.Context, c candidate) (*types.Outcome, error) {
		return e.promoteOne(ctx, c.tl, c.outcome)
	}, e.withRetry())

	for _, res := range results {
		if res.Err != nil {
			c := pending[res.Index]
			c.outcome.Status = types.StatusFailed
			c.outcome.Err = res.Err
			e.logger.Error("promotion failed", "file_id", c.outcome.FileID, "error", res.Err)
		}
	}
}

// promoteOne selects a candidate version and promotes it. Files with no
// candidate, and files whose promotion the platform refuses, are
// reported unrecoverable without failing the batch.
func (e *Engine) promoteOne(ctx context.Context, tl *types.FileTimeline, outcome *types.Outcome) (*types.Outcome, error) {
	choice, ok := selector.Select(tl.PreviousVersions, e.opts.AttackStart, e.opts.Policy)
	if !ok {
		outcome.Status = types.StatusUnrecoverable
		outcome.Reason = types.SkipNoVersions
		e.logger.Warn("no recovery candidate", "file_id", tl.FileID, "name", tl.ItemName)
		return outcome, nil
	}

	outcome.ChosenVersionID = choice.VersionID
	outcome.Delta = choice.Delta

	if e.opts.DryRun {
		outcome.Status = types.StatusPromoted
		e.logger.Info("dry run, would promote",
			"file_id", tl.FileID, "version_id", choice.VersionID, "delta", choice.Delta)
		return outcome, nil
	}

	newVersionID, err := e.api.PromoteVersion(ctx, tl.FileID, choice.VersionID)
	switch {
	case err == nil:
	case platform.IsRateLimited(err):
		return nil, err
	case platform.IsNotFound(err) || platform.IsForbidden(err):
		outcome.Status = types.StatusUnrecoverable
		e.logger.Warn("promotion refused, file unrecoverable",
			"file_id", tl.FileID, "version_id", choice.VersionID, "error", err)
		return outcome, nil
	default:
		return nil, fmt.Errorf("promoting version %s for file %s: %w", choice.VersionID, tl.FileID, err)
	}

	outcome.Status = types.StatusPromoted
	e.logger.Info("version promoted",
		"file_id", tl.FileID, "version_id", choice.VersionID,
		"new_version_id", newVersionID, "delta", choice.Delta)
	return outcome, nil
}

// withRetry derives the batch options with rate-limit requeueing wired.
func (e *Engine) withRetry() batch.Options {
	opts := e.opts.Batch
	if opts.Retryable == nil {
		opts.Retryable = platform.IsRateLimited
	}
	return opts
}

// flatten orders outcomes to match the set's first-seen order. The
// set's order slot holds the restored id after a rekey, and each
// outcome records both identities, so restored files still land in
// their original position.
func flatten(set *timeline.Set, outcomes map[string]*types.Outcome) []types.Outcome {
	byCurrentID := make(map[string]*types.Outcome, len(outcomes))
	for originalID, o := range outcomes {
		currentID := originalID
		if o.RestoredFileID != "" {
			currentID = o.RestoredFileID
		}
		byCurrentID[currentID] = o
	}

	out := make([]types.Outcome, 0, len(outcomes))
	for _, id := range set.IDs() {
		if o, ok := byCurrentID[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}
