package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/rewind/pkg/rewind/batch"
	"github.com/jamesainslie/rewind/pkg/rewind/config"
	"github.com/jamesainslie/rewind/pkg/rewind/engine"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/manifest"
	"github.com/jamesainslie/rewind/pkg/rewind/snapshot"
	"github.com/jamesainslie/rewind/pkg/rewind/timeline"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <snapshot>",
	Short: "Restore trashed files and fetch version histories from a snapshot",
	Long: `Resume from a grouping snapshot written by "rewind events" or a
previous run: restore files whose last event left them in the trash,
then fetch each file's version history. Writes an updated snapshot that
"rewind promote" can consume.`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()

	timelines, err := snapshot.Read(args[0])
	if err != nil {
		return err
	}
	set := timeline.FromMap(timelines)
	if set.Len() == 0 {
		printInfo("snapshot holds no file timelines, nothing to do")
		return nil
	}

	ctx := cmd.Context()
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	dir, err := runDir(cfg)
	if err != nil {
		return err
	}
	snapshotPath := filepath.Join(dir, versionSnapshotName)

	opts := engine.Options{
		Batch:               batchOptions(cfg),
		VersionSnapshotPath: snapshotPath,
	}

	started := time.Now()
	eng := engine.New(client, opts)
	outcomes := eng.Reconstruct(ctx, set)
	elapsed := time.Since(started)

	summary := &engine.Summary{
		Outcomes: outcomesInOrder(set, outcomes),
		Elapsed:  elapsed,
	}

	counts := summary.Counts()
	printInfo("reconciled %d files: %d restored, %d with version history in %s",
		counts.Files, counts.Restored, counts.Versioned, elapsed.Round(time.Millisecond))
	printInfo("snapshot: %s", snapshotPath)

	logRun(cfg, manifest.OpVersions, opts, summary, snapshotPath)
	return nil
}

// batchOptions maps the batch configuration onto executor options.
func batchOptions(cfg *config.Config) batch.Options {
	return batch.Options{
		Workers:     cfg.Batch.Workers,
		MaxAttempts: cfg.Batch.MaxAttempts,
		BaseBackoff: cfg.Batch.BaseBackoff,
		MaxBackoff:  cfg.Batch.MaxBackoff,
	}
}

// outcomesInOrder flattens an outcome map into the set's first-seen
// order, matching restored files by either identity.
func outcomesInOrder(set *timeline.Set, outcomes map[string]*types.Outcome) []types.Outcome {
	byCurrentID := make(map[string]*types.Outcome, len(outcomes))
	for originalID, o := range outcomes {
		id := originalID
		if o.RestoredFileID != "" {
			id = o.RestoredFileID
		}
		byCurrentID[id] = o
	}

	out := make([]types.Outcome, 0, len(outcomes))
	for _, id := range set.IDs() {
		if o, ok := byCurrentID[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}
