// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the postroj command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "postroj",
		Short: "Boot throwaway Linux machines and run commands in them",
		Long: TitleStyle.Render("postroj") + SubtitleStyle.Render(" - boot throwaway Linux machines and run commands in them") + `

postroj drives systemd-nspawn, systemd-run and machinectl to run commands
on the host, inside an unpacked root filesystem, or inside a booted
container, and supervises the container's boot in the background.

` + SubtitleStyle.Render("Examples:") + `
  postroj distros                                  List known distributions
  postroj rootfs --distro debian-bullseye -- apt-get update
  postroj boot --distro debian-bullseye --port 80 -- systemctl status nginx
  postroj exec --machine postroj-debian-bullseye -- uname -a
  postroj config show                              Show current configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/postroj/config.cue)")
	flags.StringVar(&app.flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&app.flags.logFormat, "log-format", "", "log format: text, json, logfmt (overrides config)")
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "show error details, troubleshooting pages and boot console output")

	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.AddCommand(
		newHostCommand(app),
		newRootfsCommand(app),
		newExecCommand(app),
		newBootCommand(app),
		newWaitPortCommand(app),
		newDistrosCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command tree and exits with the resulting status.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithErrorHandler(errorHandler),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// errorHandler prints errors that were not already rendered by a command
// handler. An *ExitError means the handler has reported it.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
