package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/rewind/pkg/rewind/engine"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/manifest"
	"github.com/jamesainslie/rewind/pkg/rewind/selector"
	"github.com/jamesainslie/rewind/pkg/rewind/snapshot"
	"github.com/jamesainslie/rewind/pkg/rewind/timeline"
	"github.com/jamesainslie/rewind/pkg/rewind/types"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <snapshot>",
	Short: "Select and promote recovery versions from a snapshot",
	Long: `Resume from a version snapshot written by "rewind versions" or a
previous run: for each file, pick the version closest to the attack
start under the configured policy and promote it to current.

Requires --attack-start (or a configured window) so selection knows
what "before the attack" means.`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().BoolP("dry-run", "d", false, "select versions but promote nothing")
	_ = viper.BindPFlag("dry_run", promoteCmd.Flags().Lookup("dry-run"))

	rootCmd.AddCommand(promoteCmd)
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()

	attackStart, err := cfg.AttackStart()
	if err != nil {
		return fmt.Errorf("promote needs attack_start or a recovery window: %w", err)
	}
	policy, err := selector.ParsePolicy(cfg.Recovery.Policy)
	if err != nil {
		return err
	}

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

	opts := engine.Options{
		AttackStart: attackStart,
		ActorLogin:  cfg.Recovery.ActorLogin,
		Policy:      policy,
		Batch:       batchOptions(cfg),
		DryRun:      viper.GetBool("dry_run"),
	}

	outcomes := make(map[string]*types.Outcome, set.Len())
	for _, id := range set.IDs() {
		tl, _ := set.Get(id)
		outcomes[id] = &types.Outcome{
			FileID:          id,
			ItemName:        tl.ItemName,
			Restored:        tl.RestoredFileID != "",
			RestoredFileID:  tl.RestoredFileID,
			VersionsFetched: len(tl.PreviousVersions),
		}
	}

	started := time.Now()
	eng := engine.New(client, opts)
	eng.PromoteAll(ctx, set, outcomes)

	summary := &engine.Summary{
		Outcomes: outcomesInOrder(set, outcomes),
		Elapsed:  time.Since(started),
	}

	if err := renderSummary(cfg, opts, summary, args[0]); err != nil {
		return err
	}
	logRun(cfg, manifest.OpPromote, opts, summary, args[0])
	return nil
}
