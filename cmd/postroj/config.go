// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postroj/postroj/internal/config"
)

// newConfigCommand creates the `postroj config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage postroj configuration",
		Long: `Manage postroj configuration.

Configuration is read from the first of:
  - the file passed with --config
  - $XDG_CONFIG_HOME/postroj/config.cue (~/.config/postroj/config.cue)
  - ./config.cue

Any key can be overridden from the environment, e.g. POSTROJ_LOG_LEVEL=debug
or POSTROJ_READINESS_TIMEOUT=30s.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig(cmd)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfigPath(cmd)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(commandContext(cmd))
			if err != nil {
				return app.fail(cmd, err, "load configuration", app.flags.configPath)
			}
			data, err := cfg.ToTOML()
			if err != nil {
				return fmt.Errorf("render configuration: %w", err)
			}
			_, err = app.stdout.Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig("", force)
			if err != nil {
				return app.fail(cmd, err, "create configuration", "")
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func (a *App) showConfig(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(commandContext(cmd))
	if err != nil {
		return a.fail(cmd, err, "load configuration", a.flags.configPath)
	}
	path, err := a.Config.Path(a.loadOptions())
	if err != nil {
		return a.fail(cmd, err, "locate configuration", a.flags.configPath)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := a.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	}

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"log", [][2]string{{"level", cfg.Log.Level}, {"format", cfg.Log.Format}}},
		{"tools", [][2]string{
			{"nspawn", cfg.Tools.Nspawn},
			{"systemd_run", cfg.Tools.SystemdRun},
			{"machinectl", cfg.Tools.Machinectl},
		}},
		{"rootfs", [][2]string{{"resolv_conf", cfg.Rootfs.ResolvConf}}},
		{"supervisor", [][2]string{
			{"check_timeout", cfg.Supervisor.CheckTimeout.String()},
			{"poweroff_grace", cfg.Supervisor.PoweroffGrace.String()},
		}},
		{"readiness", [][2]string{
			{"host", cfg.Readiness.Host},
			{"timeout", cfg.Readiness.Timeout.String()},
			{"interval", cfg.Readiness.Interval.String()},
		}},
	}
	for _, section := range sections {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", keyStyle.Render(section.name))
		for _, kv := range section.values {
			fmt.Fprintf(w, "  %s: %s\n", kv[0], valueStyle.Render(kv[1]))
		}
	}
	return nil
}

func (a *App) showConfigPath(cmd *cobra.Command) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return a.fail(cmd, err, "locate configuration", "")
	}
	path, err := a.Config.Path(a.loadOptions())
	if err != nil {
		return a.fail(cmd, err, "locate configuration", a.flags.configPath)
	}

	fmt.Fprintf(a.stdout, "Config directory: %s\n", cfgDir)
	if path == "" {
		fmt.Fprintf(a.stdout, "Config file: %s\n", SubtitleStyle.Render("(none, using defaults)"))
	} else {
		fmt.Fprintf(a.stdout, "Config file: %s\n", path)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command runs outside ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
