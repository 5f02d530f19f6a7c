package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// PlatformConfig configures the remote platform session.
type PlatformConfig struct {
	// SettingsPath is the service-account settings JSON file.
	SettingsPath string `mapstructure:"settings_path"`

	// AdminUserID is the admin identity impersonated for file calls.
	AdminUserID string `mapstructure:"admin_user_id"`

	// BaseURL and TokenURL override the hosted endpoints, mainly for
	// dedicated instances and tests.
	BaseURL  string `mapstructure:"base_url"`
	TokenURL string `mapstructure:"token_url"`

	// RequestsPerSecond caps the client-side call rate. Zero uses the
	// adapter default.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RecoveryConfig bounds what the engine recovers.
type RecoveryConfig struct {
	// ActorLogin is the email of the compromised account to filter on.
	ActorLogin string `mapstructure:"actor_login"`

	// WindowStart and WindowEnd bound the audit query, RFC 3339.
	WindowStart string `mapstructure:"window_start"`
	WindowEnd   string `mapstructure:"window_end"`

	// AttackStart is the suspected compromise time, RFC 3339. Empty
	// falls back to WindowStart.
	AttackStart string `mapstructure:"attack_start"`

	// EventTypes and ItemTypes filter the audit stream.
	EventTypes []string `mapstructure:"event_types"`
	ItemTypes  []string `mapstructure:"item_types"`

	// Policy is the version selection policy: prior-only or nearest.
	Policy string `mapstructure:"policy"`

	// PageSize is the event stream page size.
	PageSize int `mapstructure:"page_size"`
}

// BatchConfig tunes the worker pool.
type BatchConfig struct {
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// CacheConfig configures the local event cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ManifestConfig configures run history.
type ManifestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Components   map[string]string `mapstructure:"components"`
}

// OutputConfig configures where run artifacts land.
type OutputConfig struct {
	// Dir receives snapshots and the CSV audit trail.
	Dir string `mapstructure:"dir"`

	// Format selects the summary formatter (pretty, plain, json).
	Format string `mapstructure:"format"`
}

// Config represents the application configuration.
type Config struct {
	Platform PlatformConfig `mapstructure:"platform"`
	Recovery RecoveryConfig `mapstructure:"recovery"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Output   OutputConfig   `mapstructure:"output"`
}

// ConfigDir returns the configuration directory path.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, DefaultConfigDirName)
}

// DataDir returns the data directory for snapshots, cache, and manifests.
func DataDir() string {
	return filepath.Join(xdg.DataHome, DefaultConfigDirName)
}

// SetDefaults applies rewind's defaults to a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("platform.settings_path", filepath.Join(ConfigDir(), "platform.json"))
	v.SetDefault("recovery.event_types", DefaultEventTypes)
	v.SetDefault("recovery.item_types", DefaultItemTypes)
	v.SetDefault("recovery.policy", DefaultPolicy)
	v.SetDefault("recovery.page_size", DefaultPageSize)
	v.SetDefault("batch.workers", DefaultWorkers)
	v.SetDefault("batch.max_attempts", DefaultMaxAttempts)
	v.SetDefault("batch.base_backoff", 500*time.Millisecond)
	v.SetDefault("batch.max_backoff", 30*time.Second)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(DataDir(), "eventcache"))
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.path", filepath.Join(DataDir(), "history"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "warn")
	v.SetDefault("logging.components", map[string]string{
		"platform":  "info",
		"stream":    "info",
		"batch":     "info",
		"engine":    "info",
		"timeline":  "info",
		"reconcile": "info",
		"versions":  "info",
	})
	v.SetDefault("output.dir", filepath.Join(DataDir(), "runs"))
	v.SetDefault("output.format", "pretty")
}

// Load loads configuration from file and environment variables.
// Config file location: $XDG_CONFIG_HOME/rewind/config.yaml.
// Environment variables are prefixed with REWIND_
// (e.g. REWIND_RECOVERY_ACTOR_LOGIN).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix("REWIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing config file is fine; defaults plus env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// WriteDefault creates a commented default config file if none exists.
func WriteDefault() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Rewind Recovery Configuration

platform:
  # Service-account settings JSON exported from the platform's developer
  # console.
  settings_path: %s

  # Admin identity impersonated for restore and promote calls.
  admin_user_id: ""

recovery:
  # Email of the compromised account to filter the audit stream on.
  actor_login: ""

  # Attack time window, RFC 3339.
  window_start: ""
  window_end: ""

  # Suspected compromise time. Empty falls back to window_start.
  attack_start: ""

  # Version selection policy: prior-only or nearest.
  policy: %s

  # Event stream page size.
  page_size: %d

batch:
  workers: %d
  max_attempts: %d

cache:
  enabled: true
  ttl: 1h

output:
  # pretty, plain, or json.
  format: pretty
`,
		filepath.Join(dir, "platform.json"),
		DefaultPolicy,
		DefaultPageSize,
		DefaultWorkers,
		DefaultMaxAttempts,
	)

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Window parses the configured audit window bounds.
func (c *Config) Window() (start, end time.Time, err error) {
	if c.Recovery.WindowStart == "" || c.Recovery.WindowEnd == "" {
		return time.Time{}, time.Time{}, errors.New("recovery window_start and window_end are required")
	}

	start, err = time.Parse(time.RFC3339, c.Recovery.WindowStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing window_start: %w", err)
	}
	end, err = time.Parse(time.RFC3339, c.Recovery.WindowEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing window_end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("recovery window_end must be after window_start")
	}
	return start, end, nil
}

// AttackStart parses the suspected compromise time, falling back to the
// window start when unset.
func (c *Config) AttackStart() (time.Time, error) {
	if c.Recovery.AttackStart == "" {
		start, _, err := c.Window()
		return start, err
	}
	t, err := time.Parse(time.RFC3339, c.Recovery.AttackStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing attack_start: %w", err)
	}
	return t, nil
}

// Validate checks the fields every recovery run needs.
func (c *Config) Validate() error {
	if c.Recovery.ActorLogin == "" {
		return errors.New("recovery actor_login is required")
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	return nil
}
