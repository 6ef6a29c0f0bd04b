// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/postroj/postroj/internal/distro"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/target"
)

// DefaultImagesDir is where --distro looks for unpacked root filesystems.
const DefaultImagesDir = "/var/lib/postroj/images"

type (
	// runFlags are shared by the commands that run a foreground command.
	runFlags struct {
		noCheck bool
		quiet   bool
	}

	// rootfsFlags select a root filesystem by path or by distribution.
	rootfsFlags struct {
		directory string
		distro    string
		imagesDir string
	}
)

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.noCheck, "no-check", false, "report a non-zero exit through the exit status only")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "do not forward the command's output (shown on failure)")
}

func (f *runFlags) options() runner.Options {
	return runner.Options{Check: !f.noCheck, Passthrough: !f.quiet}
}

func (f *rootfsFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.directory, "directory", "D", "", "root filesystem directory")
	fs.StringVar(&f.distro, "distro", "", "distribution full name, e.g. debian-bullseye (see 'postroj distros')")
	fs.StringVar(&f.imagesDir, "images-dir", DefaultImagesDir, "directory holding unpacked distributions")
}

// describe names the requested rootfs for error messages.
func (f *rootfsFlags) describe() string {
	if f.distro != "" {
		return f.distro
	}
	return f.directory
}

// resolve returns the rootfs directory and the machine name derived from
// it: the distribution's machine name, or postroj-<basename>.
func (f *rootfsFlags) resolve() (target.RootfsDirectory, target.MachineName, error) {
	var (
		dir     string
		machine string
	)
	switch {
	case f.directory != "" && f.distro != "":
		return "", "", fmt.Errorf("--directory and --distro are mutually exclusive")
	case f.distro != "":
		d, err := distro.Lookup(f.distro)
		if err != nil {
			return "", "", err
		}
		dir = filepath.Join(f.imagesDir, d.FullName())
		machine = d.MachineName()
	case f.directory != "":
		abs, err := filepath.Abs(f.directory)
		if err != nil {
			return "", "", fmt.Errorf("resolve %s: %w", f.directory, err)
		}
		dir = abs
		machine = "postroj-" + filepath.Base(abs)
	default:
		return "", "", fmt.Errorf("one of --directory or --distro is required")
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: %s", errRootfsNotFound, dir)
	}
	return target.RootfsDirectory(dir), target.MachineName(machine), nil
}

func newHostCommand(app *App) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "host [flags] -- <command> [args...]",
		Short: "Run a command on the host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runForeground(cmd, target.Host{}, args, rf.options())
		},
	}
	rf.register(cmd.Flags())
	return cmd
}

func newRootfsCommand(app *App) *cobra.Command {
	var (
		rf runFlags
		fs rootfsFlags
	)

	cmd := &cobra.Command{
		Use:   "rootfs [flags] -- <command> [args...]",
		Short: "Run a command inside an unbooted root filesystem",
		Long: `Run a command inside an unbooted root filesystem with systemd-nspawn.

The host's resolv.conf is bound read-only into the rootfs so package
managers can resolve names.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _, err := fs.resolve()
			if err != nil {
				return app.fail(cmd, err, "resolve root filesystem", fs.describe())
			}
			return app.runForeground(cmd, target.Rootfs{Directory: dir}, args, rf.options())
		},
	}
	rf.register(cmd.Flags())
	fs.register(cmd.Flags())
	return cmd
}

func newExecCommand(app *App) *cobra.Command {
	var (
		rf      runFlags
		machine string
		pty     bool
	)

	cmd := &cobra.Command{
		Use:   "exec --machine <name> [flags] -- <command> [args...]",
		Short: "Run a command inside a booted container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runForeground(cmd, target.Container{Machine: target.MachineName(machine), PTY: pty}, args, rf.options())
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().StringVarP(&machine, "machine", "M", "", "machine name (see 'machinectl list')")
	cmd.Flags().BoolVarP(&pty, "pty", "t", false, "allocate a pseudo-terminal for interactive commands")
	_ = cmd.MarkFlagRequired("machine")
	return cmd
}

// runForeground runs argv in t and maps the outcome to an exit status.
func (a *App) runForeground(cmd *cobra.Command, t target.Target, argv []string, opts runner.Options) error {
	ctx := commandContext(cmd)

	s, err := a.newSession(ctx)
	if err != nil {
		return a.fail(cmd, err, "load configuration", a.flags.configPath)
	}

	result, err := s.executor.Run(ctx, t, runner.NewCommand(argv, opts))
	if err != nil {
		return a.fail(cmd, err, "run command", t.Describe())
	}
	if !result.Success() {
		cmd.SilenceErrors = true
		return &ExitError{Code: int(result.ExitCode)}
	}
	return nil
}
