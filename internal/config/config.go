// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"

	"github.com/postroj/postroj/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "postroj"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. POSTROJ_LOG_LEVEL.
	EnvPrefix = "POSTROJ"

	// maxConfigFileSize bounds how much CUE is parsed from disk.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns $XDG_CONFIG_HOME/postroj, or ~/.config/postroj when
// XDG_CONFIG_HOME is unset.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, AppName), nil
}

// resolvePath returns the file loadWithOptions reads, or "" when no file
// exists and defaults apply.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'postroj config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	candidates := []string{
		filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
		ConfigFileName + "." + ConfigFileExt,
	}
	for _, path := range candidates {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

// loadWithOptions builds the effective configuration: defaults, then the
// CUE file (if any), then environment overrides.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check POSTROJ_* environment variables for typos").
			Wrap(err).
			BuildError()
	}

	return &cfg, path, nil
}

// newViper returns a Viper seeded with the defaults and bound to the
// POSTROJ_ environment prefix.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("tools.nspawn", defaults.Tools.Nspawn)
	v.SetDefault("tools.systemd_run", defaults.Tools.SystemdRun)
	v.SetDefault("tools.machinectl", defaults.Tools.Machinectl)
	v.SetDefault("rootfs.resolv_conf", defaults.Rootfs.ResolvConf)
	v.SetDefault("supervisor.check_timeout", defaults.Supervisor.CheckTimeout)
	v.SetDefault("supervisor.poweroff_grace", defaults.Supervisor.PoweroffGrace)
	v.SetDefault("readiness.host", defaults.Readiness.Host)
	v.SetDefault("readiness.timeout", defaults.Readiness.Timeout)
	v.SetDefault("readiness.interval", defaults.Readiness.Interval)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against #Config and
// merges it into v. Decoding goes through a map so Viper keeps its
// defaults and environment precedence.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// formatCUEError flattens CUE errors into "<file>: <path>: <message>" lines.
func formatCUEError(err error, path string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.Join(cueerrors.Path(e), ".")
		msg := e.Error()
		if field != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to dir (the user
// config directory when empty) and returns the file path. An existing file
// is kept unless force is set.
func CreateDefaultConfig(dir string, force bool) (string, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if !force && fileExists(cfgPath) {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a config file the schema accepts.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// postroj configuration file\n\n")

	fmt.Fprintf(&sb, "log: {\n\tlevel:  %q\n\tformat: %q\n}\n", cfg.Log.Level, cfg.Log.Format)

	sb.WriteString("\ntools: {\n")
	fmt.Fprintf(&sb, "\tnspawn:      %q\n", cfg.Tools.Nspawn)
	fmt.Fprintf(&sb, "\tsystemd_run: %q\n", cfg.Tools.SystemdRun)
	fmt.Fprintf(&sb, "\tmachinectl:  %q\n", cfg.Tools.Machinectl)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nrootfs: {\n\tresolv_conf: %q\n}\n", cfg.Rootfs.ResolvConf)

	sb.WriteString("\nsupervisor: {\n")
	fmt.Fprintf(&sb, "\tcheck_timeout:  %q\n", cfg.Supervisor.CheckTimeout.String())
	fmt.Fprintf(&sb, "\tpoweroff_grace: %q\n", cfg.Supervisor.PoweroffGrace.String())
	sb.WriteString("}\n")

	sb.WriteString("\nreadiness: {\n")
	fmt.Fprintf(&sb, "\thost:     %q\n", cfg.Readiness.Host)
	fmt.Fprintf(&sb, "\ttimeout:  %q\n", cfg.Readiness.Timeout.String())
	fmt.Fprintf(&sb, "\tinterval: %q\n", cfg.Readiness.Interval.String())
	sb.WriteString("}\n")

	return sb.String()
}
