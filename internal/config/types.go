// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/postroj/postroj/internal/harness"
	"github.com/postroj/postroj/internal/logging"
	"github.com/postroj/postroj/internal/readiness"
	"github.com/postroj/postroj/internal/supervisor"
	"github.com/postroj/postroj/internal/target"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the effective postroj configuration.
	Config struct {
		Log        LogConfig        `mapstructure:"log"`
		Tools      ToolsConfig      `mapstructure:"tools"`
		Rootfs     RootfsConfig     `mapstructure:"rootfs"`
		Supervisor SupervisorConfig `mapstructure:"supervisor"`
		Readiness  ReadinessConfig  `mapstructure:"readiness"`
	}

	// LogConfig selects the log level and formatter.
	LogConfig struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	// ToolsConfig names the systemd binaries.
	ToolsConfig struct {
		Nspawn     string `mapstructure:"nspawn"`
		SystemdRun string `mapstructure:"systemd_run"`
		Machinectl string `mapstructure:"machinectl"`
	}

	// RootfsConfig configures commands run inside an unbooted rootfs.
	RootfsConfig struct {
		ResolvConf string `mapstructure:"resolv_conf"`
	}

	// SupervisorConfig configures the boot supervisor.
	SupervisorConfig struct {
		CheckTimeout  time.Duration `mapstructure:"check_timeout"`
		PoweroffGrace time.Duration `mapstructure:"poweroff_grace"`
	}

	// ReadinessConfig configures port polling after boot.
	ReadinessConfig struct {
		Host     string        `mapstructure:"host"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Interval time.Duration `mapstructure:"interval"`
	}

	// InvalidConfigError lists every problem found by Validate.
	InvalidConfigError struct {
		Problems []string
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Tools: ToolsConfig{
			Nspawn:     target.DefaultNspawn,
			SystemdRun: target.DefaultSystemdRun,
			Machinectl: target.DefaultMachinectl,
		},
		Rootfs: RootfsConfig{
			ResolvConf: target.DefaultResolvConf,
		},
		Supervisor: SupervisorConfig{
			CheckTimeout:  supervisor.DefaultCheckTimeout,
			PoweroffGrace: harness.DefaultPoweroffGrace,
		},
		Readiness: ReadinessConfig{
			Host:     readiness.DefaultHost,
			Timeout:  readiness.DefaultTimeout,
			Interval: readiness.DefaultInterval,
		},
	}
}

// Toolchain returns the tool paths as a target.Toolchain.
func (c *Config) Toolchain() target.Toolchain {
	return target.Toolchain{
		Nspawn:     c.Tools.Nspawn,
		SystemdRun: c.Tools.SystemdRun,
		Machinectl: c.Tools.Machinectl,
		ResolvConf: c.Rootfs.ResolvConf,
	}
}

// LoggingOptions returns the log settings as logging.Options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

// Validate checks the values the schema cannot, such as values coming from
// environment overrides and relations between durations.
func (c *Config) Validate() error {
	var problems []string

	if err := c.LoggingOptions().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	for key, value := range map[string]string{
		"tools.nspawn":      c.Tools.Nspawn,
		"tools.systemd_run": c.Tools.SystemdRun,
		"tools.machinectl":  c.Tools.Machinectl,
		"readiness.host":    c.Readiness.Host,
	} {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" must not be empty")
		}
	}
	if !strings.HasPrefix(c.Rootfs.ResolvConf, "/") {
		problems = append(problems, fmt.Sprintf("rootfs.resolv_conf must be an absolute path, got %q", c.Rootfs.ResolvConf))
	}
	for key, d := range map[string]time.Duration{
		"supervisor.check_timeout":  c.Supervisor.CheckTimeout,
		"supervisor.poweroff_grace": c.Supervisor.PoweroffGrace,
		"readiness.timeout":         c.Readiness.Timeout,
		"readiness.interval":        c.Readiness.Interval,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %s", key, d))
		}
	}
	if c.Readiness.Interval > c.Readiness.Timeout {
		problems = append(problems, fmt.Sprintf("readiness.interval (%s) must not exceed readiness.timeout (%s)",
			c.Readiness.Interval, c.Readiness.Timeout))
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return &InvalidConfigError{Problems: problems}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid config: " + e.Problems[0]
	}
	return "invalid config:\n  " + strings.Join(e.Problems, "\n  ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
