package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/rewind/pkg/rewind/config"
	"github.com/jamesainslie/rewind/pkg/rewind/engine"
	"github.com/jamesainslie/rewind/pkg/rewind/eventcache"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/manifest"
	"github.com/jamesainslie/rewind/pkg/rewind/output"
	"github.com/jamesainslie/rewind/pkg/rewind/selector"
	"github.com/jamesainslie/rewind/pkg/rewind/stream"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

// Artifact names inside a run directory.
const (
	groupSnapshotName   = "user_file_events.json"
	versionSnapshotName = "file_versions.json"
	auditTrailName      = "kept_events.csv"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Run the full recovery pipeline",
	Long: `Run the full pipeline: read the admin event stream for the attack
window, group events into per-file timelines, restore trashed files,
fetch version histories, and promote the version closest to (and before)
the attack start.

JSON checkpoints are written after grouping and after version fetch so
the run can be inspected or resumed stage by stage.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().BoolP("dry-run", "d", false, "select versions but promote nothing")
	_ = viper.BindPFlag("dry_run", recoverCmd.Flags().Lookup("dry-run"))

	rootCmd.AddCommand(recoverCmd)
}

// runRecover executes the full pipeline.
func runRecover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()

	ctx := cmd.Context()
	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	dir, err := runDir(cfg)
	if err != nil {
		return err
	}

	opts, cleanup, err := buildEngineOptions(cfg, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := engine.New(client, opts)
	summary, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	snapshotPath := filepath.Join(dir, versionSnapshotName)
	if err := renderSummary(cfg, opts, summary, snapshotPath); err != nil {
		return err
	}
	logRun(cfg, manifest.OpRecover, opts, summary, snapshotPath)
	return nil
}

// buildEngineOptions assembles engine options from configuration and
// the run directory, returning a cleanup for resources it opened.
func buildEngineOptions(cfg *config.Config, dir string) (engine.Options, func(), error) {
	cleanup := func() {}

	start, end, err := cfg.Window()
	if err != nil {
		return engine.Options{}, cleanup, err
	}
	attackStart, err := cfg.AttackStart()
	if err != nil {
		return engine.Options{}, cleanup, err
	}
	policy, err := selector.ParsePolicy(cfg.Recovery.Policy)
	if err != nil {
		return engine.Options{}, cleanup, err
	}

	eventTypes := make([]types.EventType, 0, len(cfg.Recovery.EventTypes))
	for _, name := range cfg.Recovery.EventTypes {
		et, err := types.ParseEventType(name)
		if err != nil {
			return engine.Options{}, cleanup, err
		}
		eventTypes = append(eventTypes, et)
	}

	opts := engine.Options{
		Window:      stream.Window{Start: start, End: end},
		AttackStart: attackStart,
		ActorLogin:  cfg.Recovery.ActorLogin,
		EventTypes:  eventTypes,
		ItemTypes:   cfg.Recovery.ItemTypes,
		Policy:      policy,
		PageSize:    cfg.Recovery.PageSize,
		DryRun:      viper.GetBool("dry_run"),
		Batch:       batchOptions(cfg),
	}

	if dir != "" {
		opts.GroupSnapshotPath = filepath.Join(dir, groupSnapshotName)
		opts.VersionSnapshotPath = filepath.Join(dir, versionSnapshotName)

		audit, err := os.Create(filepath.Join(dir, auditTrailName))
		if err != nil {
			return engine.Options{}, cleanup, fmt.Errorf("creating audit trail: %w", err)
		}
		opts.Audit = audit
		cleanup = func() { _ = audit.Close() }
	}

	if cfg.Cache.Enabled && !viper.GetBool("no_cache") {
		cache, err := eventcache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			logging.Get("cli").Warn("event cache unavailable, continuing without it", "error", err)
		} else {
			opts.Cache = cache
			prev := cleanup
			cleanup = func() { _ = cache.Close(); prev() }
		}
	}

	return opts, cleanup, nil
}

// renderSummary formats the run summary to stdout.
func renderSummary(cfg *config.Config, opts engine.Options, summary *engine.Summary, snapshotPath string) error {
	formatter, err := output.Get(cfg.Output.Format)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, buildResult(opts, summary, snapshotPath)); err != nil {
		return err
	}
	fmt.Print(buf.String())
	return nil
}

// buildResult converts an engine summary into the output shape.
func buildResult(opts engine.Options, summary *engine.Summary, snapshotPath string) *output.Result {
	counts := summary.Counts()

	result := &output.Result{
		ActorLogin:   opts.ActorLogin,
		WindowStart:  opts.Window.Start,
		WindowEnd:    opts.Window.End,
		AttackStart:  opts.AttackStart,
		DryRun:       opts.DryRun,
		SnapshotPath: snapshotPath,
		Stats: output.RunStats{
			EventsRead:    summary.EventsRead,
			Files:         counts.Files,
			Restored:      counts.Restored,
			Versioned:     counts.Versioned,
			Promoted:      counts.Promoted,
			Unrecoverable: counts.Unrecoverable,
			Failed:        counts.Failed,
			Skipped:       counts.Skipped,
			Duration:      summary.Elapsed,
		},
	}

	for _, o := range summary.Outcomes {
		file := output.FileOutcome{
			FileID:          o.FileID,
			Name:            o.ItemName,
			Status:          o.Status,
			Reason:          string(o.Reason),
			Restored:        o.Restored,
			Versions:        o.VersionsFetched,
			ChosenVersionID: o.ChosenVersionID,
			Delta:           o.Delta,
		}
		if o.Err != nil {
			file.Error = o.Err.Error()
		}
		result.Files = append(result.Files, file)
	}
	return result
}

// logRun appends a manifest entry for the run, best effort.
func logRun(cfg *config.Config, op manifest.Operation, opts engine.Options, summary *engine.Summary, snapshotPath string) {
	if !cfg.Manifest.Enabled {
		return
	}

	m, err := manifest.New(cfg.Manifest.Path)
	if err != nil {
		logging.Get("cli").Warn("run history disabled", "error", err)
		return
	}

	counts := summary.Counts()
	entry := manifest.Entry{
		Operation:    op,
		ActorLogin:   opts.ActorLogin,
		WindowStart:  opts.Window.Start,
		WindowEnd:    opts.Window.End,
		SnapshotPath: snapshotPath,
		DryRun:       opts.DryRun,
		Elapsed:      summary.Elapsed.Round(time.Millisecond).String(),
		Summary: manifest.Summary{
			Files:         counts.Files,
			Restored:      counts.Restored,
			Versioned:     counts.Versioned,
			Promoted:      counts.Promoted,
			Unrecoverable: counts.Unrecoverable,
			Failed:        counts.Failed,
			Skipped:       counts.Skipped,
		},
	}
	if _, err := m.Log(entry); err != nil {
		logging.Get("cli").Warn("run history entry not written", "error", err)
	}
}
