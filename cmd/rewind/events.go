package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/rewind/pkg/rewind/engine"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/manifest"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Ingest and group audit events without touching any file",
	Long: `Read the admin event stream for the attack window, group the matching
events into per-file timelines, and write the grouping snapshot. No
restore or promotion calls are made.

The snapshot feeds the later stages:

  rewind versions <snapshot>
  rewind promote <snapshot>`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
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

	started := time.Now()
	eng := engine.New(client, opts)
	set, eventsRead, err := eng.Ingest(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	snapshotPath := filepath.Join(dir, groupSnapshotName)
	printInfo("read %d events, grouped %d files in %s", eventsRead, set.Len(), elapsed.Round(time.Millisecond))
	printInfo("snapshot: %s", snapshotPath)

	logRun(cfg, manifest.OpEvents, opts, &engine.Summary{EventsRead: eventsRead, Elapsed: elapsed}, snapshotPath)
	return nil
}
