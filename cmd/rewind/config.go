package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/rewind/pkg/rewind/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage rewind configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/rewind/config.yaml (if set)
  2. ~/.config/rewind/config.yaml

Environment variables can override config file settings using the REWIND_ prefix:
  REWIND_RECOVERY_ACTOR_LOGIN=victim@example.com
  REWIND_RECOVERY_POLICY=nearest
  REWIND_BATCH_WORKERS=16`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("platform.settings_path:     %s\n", cfg.Platform.SettingsPath)
	fmt.Printf("platform.admin_user_id:     %s\n", cfg.Platform.AdminUserID)
	fmt.Printf("recovery.actor_login:       %s\n", cfg.Recovery.ActorLogin)
	fmt.Printf("recovery.window_start:      %s\n", cfg.Recovery.WindowStart)
	fmt.Printf("recovery.window_end:        %s\n", cfg.Recovery.WindowEnd)
	fmt.Printf("recovery.attack_start:      %s\n", cfg.Recovery.AttackStart)
	fmt.Printf("recovery.event_types:       %s\n", strings.Join(cfg.Recovery.EventTypes, ","))
	fmt.Printf("recovery.policy:            %s\n", cfg.Recovery.Policy)
	fmt.Printf("recovery.page_size:         %d\n", cfg.Recovery.PageSize)
	fmt.Printf("batch.workers:              %d\n", cfg.Batch.Workers)
	fmt.Printf("batch.max_attempts:         %d\n", cfg.Batch.MaxAttempts)
	fmt.Printf("cache.enabled:              %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.ttl:                  %s\n", cfg.Cache.TTL)
	fmt.Printf("manifest.enabled:           %t\n", cfg.Manifest.Enabled)
	fmt.Printf("manifest.path:              %s\n", cfg.Manifest.Path)
	fmt.Printf("output.dir:                 %s\n", cfg.Output.Dir)
	fmt.Printf("output.format:              %s\n", cfg.Output.Format)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"REWIND_PLATFORM_SETTINGS_PATH",
		"REWIND_PLATFORM_ADMIN_USER_ID",
		"REWIND_RECOVERY_ACTOR_LOGIN",
		"REWIND_RECOVERY_WINDOW_START",
		"REWIND_RECOVERY_WINDOW_END",
		"REWIND_RECOVERY_ATTACK_START",
		"REWIND_RECOVERY_POLICY",
		"REWIND_BATCH_WORKERS",
		"REWIND_OUTPUT_FORMAT",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configPath := filepath.Join(config.ConfigDir(), "config.yaml")

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(config.ConfigDir(), "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'rewind config edit' to modify it.")
		return nil
	}

	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(filepath.Join(config.ConfigDir(), "config.yaml"))
	return nil
}
