// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/postroj/postroj/internal/testutil"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	return testutil.MustWriteFile(t, dir, ConfigFileName+"."+ConfigFileExt, content)
}

func TestConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", xdg)
	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(xdg, ".config", AppName); dir != want {
		t.Errorf("ConfigDir() without XDG_CONFIG_HOME = %q, want %q", dir, want)
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())

	provider := NewProvider()
	opts := LoadOptions{ConfigDirPath: t.TempDir()}

	cfg, err := provider.Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}

	path, err := provider.Path(opts)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if path != "" {
		t.Errorf("Path() = %q, want empty", path)
	}
}

func TestLoadCUEFile(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := writeConfig(t, dir, `
log: level: "debug"
tools: nspawn: "/usr/local/bin/systemd-nspawn"
supervisor: {
	check_timeout:  "1s"
	poweroff_grace: "45s"
}
readiness: {
	timeout:  "30s"
	interval: "100ms"
}
`)

	provider := NewProvider()
	opts := LoadOptions{ConfigDirPath: dir}

	cfg, err := provider.Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default text", cfg.Log.Format)
	}
	if cfg.Tools.Nspawn != "/usr/local/bin/systemd-nspawn" {
		t.Errorf("Tools.Nspawn = %q", cfg.Tools.Nspawn)
	}
	if cfg.Tools.Machinectl != "machinectl" {
		t.Errorf("Tools.Machinectl = %q, want default", cfg.Tools.Machinectl)
	}
	if cfg.Supervisor.CheckTimeout != time.Second {
		t.Errorf("Supervisor.CheckTimeout = %s, want 1s", cfg.Supervisor.CheckTimeout)
	}
	if cfg.Supervisor.PoweroffGrace != 45*time.Second {
		t.Errorf("Supervisor.PoweroffGrace = %s, want 45s", cfg.Supervisor.PoweroffGrace)
	}
	if cfg.Readiness.Timeout != 30*time.Second || cfg.Readiness.Interval != 100*time.Millisecond {
		t.Errorf("Readiness = %+v", cfg.Readiness)
	}

	got, err := provider.Path(opts)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if got != path {
		t.Errorf("Path() = %q, want %q", got, path)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "unknown level",
			content: `log: level: "verbose"`,
			wantMsg: "log.level",
		},
		{
			name:    "bad duration",
			content: `supervisor: check_timeout: "soon"`,
			wantMsg: "supervisor.check_timeout",
		},
		{
			name:    "relative resolv.conf",
			content: `rootfs: resolv_conf: "etc/resolv.conf"`,
			wantMsg: "rootfs.resolv_conf",
		},
		{
			name:    "unknown field",
			content: `network: zone: "x"`,
			wantMsg: "network",
		},
		{
			name:    "syntax error",
			content: `log: {`,
			wantMsg: "config.cue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.cue")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %q", err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `log: level: "debug"`)

	t.Setenv("POSTROJ_LOG_LEVEL", "warn")
	t.Setenv("POSTROJ_READINESS_TIMEOUT", "12s")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override warn", cfg.Log.Level)
	}
	if cfg.Readiness.Timeout != 12*time.Second {
		t.Errorf("Readiness.Timeout = %s, want 12s", cfg.Readiness.Timeout)
	}
}

func TestLoadInvalidEnvironmentOverride(t *testing.T) {
	t.Setenv("POSTROJ_LOG_FORMAT", "yaml")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty nspawn", func(c *Config) { c.Tools.Nspawn = "  " }, true},
		{"relative resolv.conf", func(c *Config) { c.Rootfs.ResolvConf = "resolv.conf" }, true},
		{"zero check timeout", func(c *Config) { c.Supervisor.CheckTimeout = 0 }, true},
		{"negative poweroff grace", func(c *Config) { c.Supervisor.PoweroffGrace = -time.Second }, true},
		{"interval above timeout", func(c *Config) { c.Readiness.Interval = time.Minute }, true},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = false")
			}
			var invalid *InvalidConfigError
			if !errors.As(err, &invalid) || len(invalid.Problems) == 0 {
				t.Errorf("errors.As(err, *InvalidConfigError) failed for %v", err)
			}
		})
	}
}

func TestCreateDefaultConfigRoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "postroj")
	path, err := CreateDefaultConfig(dir, false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() of generated config error = %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("generated config loads as %+v, want defaults", cfg)
	}
}

func TestCreateDefaultConfigKeepsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `log: level: "error"`)

	if _, err := CreateDefaultConfig(dir, false); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `log: level: "error"` {
		t.Errorf("existing config overwritten without force: %q", data)
	}

	if _, err := CreateDefaultConfig(dir, true); err != nil {
		t.Fatalf("CreateDefaultConfig(force) error = %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `level:  "info"`) {
		t.Errorf("forced config = %q, want defaults", data)
	}
}

func TestToTOML(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Readiness.Timeout = 90 * time.Second

	data, err := cfg.ToTOML()
	if err != nil {
		t.Fatalf("ToTOML() error = %v", err)
	}

	var decoded map[string]map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("ToTOML() produced invalid TOML: %v\n%s", err, data)
	}
	if got := decoded["readiness"]["timeout"]; got != "1m30s" {
		t.Errorf("readiness.timeout = %v, want 1m30s", got)
	}
	if got := decoded["tools"]["systemd_run"]; got != "systemd-run" {
		t.Errorf("tools.systemd_run = %v, want systemd-run", got)
	}
}
