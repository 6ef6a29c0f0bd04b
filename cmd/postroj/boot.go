// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/postroj/postroj/internal/harness"
	"github.com/postroj/postroj/internal/metrics"
	"github.com/postroj/postroj/internal/readiness"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/supervisor"
	"github.com/postroj/postroj/internal/target"
)

// metricsShutdownTimeout bounds the metrics server's graceful shutdown.
const metricsShutdownTimeout = 2 * time.Second

type bootFlags struct {
	rootfs      rootfsFlags
	run         runFlags
	machine     string
	port        int
	pty         bool
	keep        bool
	metricsAddr string
}

func newBootCommand(app *App) *cobra.Command {
	var bf bootFlags

	cmd := &cobra.Command{
		Use:   "boot [flags] [-- <command> [args...]]",
		Short: "Boot a container, optionally run a command in it, and power it off",
		Long: `Boot a container from a root filesystem with systemd-nspawn --boot.

The boot runs in the background. postroj waits briefly for it to fail,
then optionally waits for --port to accept connections and runs the given
command inside the machine. Afterwards the machine is powered off and
postroj waits up to supervisor.poweroff_grace for it to shut down. With
--keep the machine is left running, and after a failed boot it is left
for inspection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.boot(cmd, &bf, args)
		},
	}

	flags := cmd.Flags()
	bf.rootfs.register(flags)
	bf.run.register(flags)
	flags.StringVarP(&bf.machine, "machine", "M", "", "machine name (default derived from the rootfs)")
	flags.IntVarP(&bf.port, "port", "p", 0, "wait for this TCP port to accept connections after boot")
	flags.BoolVarP(&bf.pty, "pty", "t", false, "allocate a pseudo-terminal for the command")
	flags.BoolVar(&bf.keep, "keep", false, "leave the machine running afterwards")
	flags.StringVar(&bf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while booted, e.g. :9090")
	return cmd
}

func (a *App) boot(cmd *cobra.Command, bf *bootFlags, args []string) error {
	ctx := commandContext(cmd)

	s, err := a.newSession(ctx)
	if err != nil {
		return a.fail(cmd, err, "load configuration", a.flags.configPath)
	}

	dir, machine, err := bf.rootfs.resolve()
	if err != nil {
		return a.fail(cmd, err, "resolve root filesystem", bf.rootfs.describe())
	}
	if bf.machine != "" {
		machine = target.MachineName(bf.machine)
	}

	if bf.metricsAddr != "" {
		srv, listenErr := metrics.Listen(bf.metricsAddr, a.Registry, s.logger)
		if listenErr != nil {
			return a.fail(cmd, listenErr, "serve metrics", bf.metricsAddr)
		}
		srv.Serve()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				s.logger.Warn("metrics server shutdown failed", "error", shutdownErr)
			}
		}()
	}

	sess, err := a.newHarness(s, machine, dir)
	if err != nil {
		return a.fail(cmd, err, "boot machine", machine.String())
	}
	defer func() {
		if stopErr := sess.StopBoot(); stopErr != nil {
			s.logger.Error("failed to stop boot process", "machine", machine, "error", stopErr)
		}
	}()

	code, runErr := a.bootAndRun(ctx, sess, bf, args)

	switch {
	case !bf.keep:
		if tdErr := sess.Teardown(context.WithoutCancel(ctx)); tdErr != nil {
			runErr = errors.Join(runErr, tdErr)
		}
	case !sess.Supervisor().Aborted():
		sess.ReleaseBoot()
	}

	if runErr != nil {
		return a.fail(cmd, runErr, "boot machine", machine.String())
	}
	if !code.IsSuccess() {
		cmd.SilenceErrors = true
		return &ExitError{Code: int(code)}
	}
	if bf.keep {
		fmt.Fprintf(a.stdout, "%s machine %s left running\n", SuccessStyle.Render("✓"), CmdStyle.Render(machine.String()))
		return nil
	}
	fmt.Fprintf(a.stdout, "%s machine %s finished\n", SuccessStyle.Render("✓"), CmdStyle.Render(machine.String()))
	return nil
}

// newHarness builds the session for one boot, wired to the app's metrics.
func (a *App) newHarness(s *session, machine target.MachineName, dir target.RootfsDirectory) (*harness.Session, error) {
	supOpts := []supervisor.Option{supervisor.WithRecorder(a.Metrics)}
	if a.flags.verbose {
		supOpts = append(supOpts, supervisor.WithOutput(a.stderr))
	}
	if a.execCommand != nil {
		supOpts = append(supOpts, supervisor.WithExecCommand(a.execCommand))
	}

	poller := readiness.New(
		readiness.WithProgress(a.stderr),
		readiness.WithLogger(s.logger),
		readiness.WithRecorder(a.Metrics),
	)

	return harness.New(machine, dir, s.executor,
		harness.WithLogger(s.logger),
		harness.WithCheckTimeout(s.cfg.Supervisor.CheckTimeout),
		harness.WithPoweroffGrace(s.cfg.Supervisor.PoweroffGrace),
		harness.WithPoller(poller),
		harness.WithReadiness(s.cfg.Readiness.Host, s.cfg.Readiness.Timeout, s.cfg.Readiness.Interval),
		harness.WithSupervisorOptions(supOpts...),
	)
}

// bootAndRun boots the machine and runs args in it. The exit code is only
// meaningful with --no-check; otherwise a failing command is an error.
func (a *App) bootAndRun(ctx context.Context, sess *harness.Session, bf *bootFlags, args []string) (runner.ExitCode, error) {
	if err := sess.Boot(ctx, bf.port); err != nil {
		return 0, err
	}
	if len(args) == 0 {
		return 0, nil
	}

	result, err := sess.RunInContainer(ctx, runner.NewCommand(args, bf.run.options()), bf.pty)
	if err != nil {
		return 0, err
	}

	// A boot failure that raced the command is still a failure.
	return result.ExitCode, sess.CheckBoot()
}
