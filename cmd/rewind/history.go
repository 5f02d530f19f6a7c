package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/rewind/pkg/rewind/manifest"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past recovery runs",
	Long:  `List past runs recorded in the run manifest, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum entries to show (0=all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Manifest.Enabled {
		return fmt.Errorf("run history is disabled in configuration")
	}

	m, err := manifest.New(cfg.Manifest.Path)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := m.List(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		printInfo("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tOPERATION\tACTOR\tFILES\tPROMOTED\tFAILED\tDRY RUN")
	for _, e := range entries {
		dryRun := ""
		if e.DryRun {
			dryRun = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			humanize.Time(e.Timestamp.Local()),
			e.Operation,
			e.ActorLogin,
			e.Summary.Files,
			e.Summary.Promoted,
			e.Summary.Failed,
			dryRun)
	}
	return w.Flush()
}
