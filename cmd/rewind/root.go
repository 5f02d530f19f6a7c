package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/rewind/pkg/rewind/config"
	"github.com/jamesainslie/rewind/pkg/rewind/logging"
	"github.com/jamesainslie/rewind/pkg/rewind/platform"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "rewind",
		Short: "Recover files on a content platform after a mass-tampering incident",
		Long: `Rewind reconstructs per-file audit timelines for a compromised account,
restores trashed files, and promotes the file version that most likely
predates the compromise.

Give it the attack time window and the actor to investigate, and run the
pipeline in one shot or stage by stage:

  rewind recover                  # full pipeline: events -> restore -> promote
  rewind recover --dry-run        # select versions but promote nothing
  rewind events                   # ingest and group audit events only
  rewind versions <snapshot>      # restore trashed files, fetch version history
  rewind promote <snapshot>       # select and promote recovery versions
  rewind history                  # past runs
  rewind config show              # effective configuration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/rewind/config.yaml)")
	rootCmd.PersistentFlags().StringP("actor", "a", "", "email of the compromised account to filter on")
	rootCmd.PersistentFlags().String("window-start", "", "audit window start (RFC 3339)")
	rootCmd.PersistentFlags().String("window-end", "", "audit window end (RFC 3339)")
	rootCmd.PersistentFlags().String("attack-start", "", "suspected compromise time (RFC 3339, default: window start)")
	rootCmd.PersistentFlags().String("policy", "", "version selection policy: prior-only or nearest")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "batch worker count (0=configured default)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "summary format: pretty, plain, json")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the local event cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")

	_ = viper.BindPFlag("recovery.actor_login", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("recovery.window_start", rootCmd.PersistentFlags().Lookup("window-start"))
	_ = viper.BindPFlag("recovery.window_end", rootCmd.PersistentFlags().Lookup("window-end"))
	_ = viper.BindPFlag("recovery.attack_start", rootCmd.PersistentFlags().Lookup("attack-start"))
	_ = viper.BindPFlag("recovery.policy", rootCmd.PersistentFlags().Lookup("policy"))
	_ = viper.BindPFlag("batch.workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.SetEnvPrefix("REWIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	// Missing config file is fine; defaults plus env apply.
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig builds the effective configuration from viper state.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// initLogging wires the logging package from configuration, honoring
// --verbose and --quiet.
func initLogging(cfg *config.Config) error {
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		Components:   cfg.Logging.Components,
	}
	if viper.GetBool("verbose") {
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
	}
	if viper.GetBool("quiet") {
		logCfg.ConsoleLevel = "error"
	}
	return logging.Init(logCfg)
}

// newClient builds and authenticates the platform client. A session
// that cannot be established is fatal for the whole run.
func newClient(ctx context.Context, cfg *config.Config) (*platform.Client, error) {
	settings, err := platform.LoadSettings(cfg.Platform.SettingsPath)
	if err != nil {
		return nil, err
	}

	client := platform.New(settings, platform.Options{
		BaseURL:           cfg.Platform.BaseURL,
		TokenURL:          cfg.Platform.TokenURL,
		AsUser:            cfg.Platform.AdminUserID,
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
	})
	if err := client.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("establishing platform session: %w", err)
	}
	return client, nil
}

// runDir creates a timestamped directory for this run's artifacts.
func runDir(cfg *config.Config) (string, error) {
	dir := filepath.Join(cfg.Output.Dir, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	return dir, nil
}

// printInfo prints a message unless quiet mode is enabled.
func printInfo(format string, args ...any) {
	if viper.GetBool("quiet") {
		return
	}
	fmt.Printf(format+"\n", args...)
}
