package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Recovery.ActorLogin = "victim@example.com"
	cfg.Recovery.WindowStart = "2026-03-01T00:00:00Z"
	cfg.Recovery.WindowEnd = "2026-03-02T00:00:00Z"
	return cfg
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	if got := v.GetInt("recovery.page_size"); got != DefaultPageSize {
		t.Errorf("recovery.page_size = %d, want %d", got, DefaultPageSize)
	}
	if got := v.GetString("recovery.policy"); got != DefaultPolicy {
		t.Errorf("recovery.policy = %q, want %q", got, DefaultPolicy)
	}
	if got := v.GetInt("batch.workers"); got != DefaultWorkers {
		t.Errorf("batch.workers = %d, want %d", got, DefaultWorkers)
	}
	if got := v.GetInt("batch.max_attempts"); got != DefaultMaxAttempts {
		t.Errorf("batch.max_attempts = %d, want %d", got, DefaultMaxAttempts)
	}
	if !v.GetBool("cache.enabled") {
		t.Error("cache.enabled should default to true")
	}
	if got := v.GetString("output.format"); got != "pretty" {
		t.Errorf("output.format = %q, want pretty", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
recovery:
  actor_login: victim@example.com
  window_start: "2026-03-01T00:00:00Z"
  window_end: "2026-03-02T00:00:00Z"
  policy: nearest
batch:
  workers: 16
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Recovery.ActorLogin != "victim@example.com" {
		t.Errorf("ActorLogin = %q", cfg.Recovery.ActorLogin)
	}
	if cfg.Recovery.Policy != "nearest" {
		t.Errorf("Policy = %q, want nearest", cfg.Recovery.Policy)
	}
	if cfg.Batch.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Batch.Workers)
	}
	// Unset keys fall back to defaults.
	if cfg.Recovery.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want default %d", cfg.Recovery.PageSize, DefaultPageSize)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for a missing file", err)
	}
	if cfg.Recovery.Policy != DefaultPolicy {
		t.Errorf("Policy = %q, want default", cfg.Recovery.Policy)
	}
}

func TestWindow(t *testing.T) {
	t.Run("valid window", func(t *testing.T) {
		cfg := validConfig()
		start, end, err := cfg.Window()
		if err != nil {
			t.Fatalf("Window() error = %v", err)
		}
		if !end.After(start) {
			t.Error("end should be after start")
		}
		if start.Format(time.RFC3339) != "2026-03-01T00:00:00Z" {
			t.Errorf("start = %v", start)
		}
	})

	t.Run("missing bounds", func(t *testing.T) {
		cfg := &Config{}
		if _, _, err := cfg.Window(); err == nil {
			t.Error("Window() = nil error for empty bounds")
		}
	})

	t.Run("inverted window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Recovery.WindowStart, cfg.Recovery.WindowEnd = cfg.Recovery.WindowEnd, cfg.Recovery.WindowStart
		if _, _, err := cfg.Window(); err == nil {
			t.Error("Window() = nil error for end before start")
		}
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		cfg := validConfig()
		cfg.Recovery.WindowStart = "yesterday"
		if _, _, err := cfg.Window(); err == nil {
			t.Error("Window() = nil error for malformed start")
		}
	})
}

func TestAttackStart(t *testing.T) {
	t.Run("explicit value", func(t *testing.T) {
		cfg := validConfig()
		cfg.Recovery.AttackStart = "2026-03-01T12:00:00Z"
		got, err := cfg.AttackStart()
		if err != nil {
			t.Fatalf("AttackStart() error = %v", err)
		}
		if got.Hour() != 12 {
			t.Errorf("AttackStart() = %v", got)
		}
	})

	t.Run("falls back to window start", func(t *testing.T) {
		cfg := validConfig()
		got, err := cfg.AttackStart()
		if err != nil {
			t.Fatalf("AttackStart() error = %v", err)
		}
		start, _, _ := cfg.Window()
		if !got.Equal(start) {
			t.Errorf("AttackStart() = %v, want window start %v", got, start)
		}
	})
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v for valid config", err)
	}

	cfg := validConfig()
	cfg.Recovery.ActorLogin = ""
	if cfg.Validate() == nil {
		t.Error("Validate() = nil without actor_login")
	}

	cfg = validConfig()
	cfg.Recovery.WindowEnd = ""
	if cfg.Validate() == nil {
		t.Error("Validate() = nil without window bounds")
	}
}

func TestWriteDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()

	if err := WriteDefault(); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	path := filepath.Join(ConfigDir(), "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("default config is empty")
	}

	// Idempotent: a second call must not clobber the file.
	if err := os.WriteFile(path, []byte("touched: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(); err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "touched: true\n" {
		t.Error("WriteDefault() overwrote an existing config file")
	}
}
