// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/postroj/postroj/internal/readiness"
	"github.com/postroj/postroj/internal/runner"
	"github.com/postroj/postroj/internal/supervisor"
	"github.com/postroj/postroj/internal/target"
)

// ErrNotBooted is returned by boot-dependent operations before StartBoot.
var ErrNotBooted = errors.New("machine not booted")

// DefaultPoweroffGrace is how long Teardown waits for the boot process to
// exit after the machine was told to power off.
const DefaultPoweroffGrace = 10 * time.Second

type (
	// Option configures a Session.
	Option func(*Session)

	// Session drives one machine through its lifecycle. It is single-use:
	// the underlying supervisor cannot be restarted after StopBoot.
	Session struct {
		machine   target.MachineName
		directory target.RootfsDirectory
		executor  *target.Executor

		supervisor     *supervisor.Supervisor
		supervisorOpts []supervisor.Option

		poller        *readiness.Poller
		readyHost     string
		readyTimeout  time.Duration
		readyInterval time.Duration

		checkTimeout  time.Duration
		poweroffGrace time.Duration
		logger        *log.Logger

		aborted atomic.Bool
	}
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithCheckTimeout sets how long CheckBoot waits for a boot failure.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.checkTimeout = d
		}
	}
}

// WithPoweroffGrace sets how long Teardown waits for the boot process to
// exit on its own.
func WithPoweroffGrace(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.poweroffGrace = d
		}
	}
}

// WithPoller sets the readiness poller.
func WithPoller(p *readiness.Poller) Option {
	return func(s *Session) {
		s.poller = p
	}
}

// WithReadiness sets the host polled by WaitForPort and its timing.
// Zero values keep the defaults.
func WithReadiness(host string, timeout, interval time.Duration) Option {
	return func(s *Session) {
		if host != "" {
			s.readyHost = host
		}
		if timeout > 0 {
			s.readyTimeout = timeout
		}
		if interval > 0 {
			s.readyInterval = interval
		}
	}
}

// WithSupervisorOptions passes extra options to the boot supervisor, such
// as its output writer or metrics recorder. The session's own abort and
// error hooks are always installed last.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(s *Session) {
		s.supervisorOpts = append(s.supervisorOpts, opts...)
	}
}

// New creates a Session for machine backed by the rootfs at directory.
func New(machine target.MachineName, directory target.RootfsDirectory, executor *target.Executor, opts ...Option) (*Session, error) {
	if err := machine.Validate(); err != nil {
		return nil, err
	}
	if err := directory.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		return nil, errors.New("harness: executor must not be nil")
	}

	s := &Session{
		machine:       machine,
		directory:     directory.Clean(),
		executor:      executor,
		readyHost:     readiness.DefaultHost,
		readyTimeout:  readiness.DefaultTimeout,
		readyInterval: readiness.DefaultInterval,
		checkTimeout:  supervisor.DefaultCheckTimeout,
		poweroffGrace: DefaultPoweroffGrace,
		logger:        log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.poller == nil {
		s.poller = readiness.New(readiness.WithLogger(s.logger))
	}

	supOpts := append([]supervisor.Option{
		supervisor.WithLogger(s.logger),
		supervisor.WithCheckTimeout(s.checkTimeout),
	}, s.supervisorOpts...)
	supOpts = append(supOpts,
		supervisor.WithOnAbort(s.markAborted),
		supervisor.WithOnError(s.annotateFailure),
	)
	s.supervisor = supervisor.New(supOpts...)

	return s, nil
}

// Machine returns the machine name.
func (s *Session) Machine() target.MachineName { return s.machine }

// Directory returns the rootfs directory.
func (s *Session) Directory() target.RootfsDirectory { return s.directory }

// Supervisor returns the boot supervisor.
func (s *Session) Supervisor() *supervisor.Supervisor { return s.supervisor }

// Aborted reports whether CheckBoot has observed a boot failure.
func (s *Session) Aborted() bool { return s.aborted.Load() }

// RunOnHost runs c on the host.
func (s *Session) RunOnHost(ctx context.Context, c runner.Command) (runner.Result, error) {
	return s.executor.Run(ctx, target.Host{}, c)
}

// RunInRootfs runs c inside the unbooted rootfs.
func (s *Session) RunInRootfs(ctx context.Context, c runner.Command) (runner.Result, error) {
	return s.executor.Run(ctx, target.Rootfs{Directory: s.directory}, c)
}

// RunInContainer runs c inside the booted machine. pty allocates a
// terminal for interactive commands.
func (s *Session) RunInContainer(ctx context.Context, c runner.Command, pty bool) (runner.Result, error) {
	return s.executor.Run(ctx, target.Container{Machine: s.machine, PTY: pty}, c)
}

// StartBoot launches the machine's boot command in the background.
func (s *Session) StartBoot(ctx context.Context) error {
	argv := s.executor.Toolchain().BootArgs(s.directory, s.machine)
	s.logger.Info("booting machine", "machine", s.machine, "directory", s.directory)
	return s.supervisor.Start(ctx, argv)
}

// CheckBoot waits briefly for the boot command to fail. It returns nil when
// the boot is still running or finished cleanly.
func (s *Session) CheckBoot() error {
	if s.supervisor.State() == supervisor.StateIdle {
		return ErrNotBooted
	}
	return s.supervisor.Check(s.checkTimeout)
}

// StopBoot stops the boot command and waits for its worker.
func (s *Session) StopBoot() error {
	return s.supervisor.Stop()
}

// ReleaseBoot leaves the booted machine running. StopBoot afterwards does
// not touch it.
func (s *Session) ReleaseBoot() {
	s.logger.Info("leaving machine running", "machine", s.machine, "pid", s.supervisor.PID())
	s.supervisor.Release()
}

// WaitForPort polls port on the machine until it accepts connections or
// the readiness timeout elapses.
func (s *Session) WaitForPort(ctx context.Context, port int) bool {
	s.logger.Info("waiting for port", "machine", s.machine, "host", s.readyHost, "port", port)
	return s.poller.WaitForPort(ctx, s.readyHost, port, s.readyTimeout, s.readyInterval)
}

// Boot runs the canonical boot sequence: StartBoot, CheckBoot, then
// WaitForPort when port is positive. The caller still owns StopBoot on
// every path.
func (s *Session) Boot(ctx context.Context, port int) error {
	if err := s.StartBoot(ctx); err != nil {
		return err
	}
	if err := s.CheckBoot(); err != nil {
		return err
	}
	if port <= 0 {
		return nil
	}
	if !s.WaitForPort(ctx, port) {
		// A boot failure may have landed while polling.
		if s.supervisor.Aborted() {
			return s.supervisor.Check(s.checkTimeout)
		}
		return &PortNotReadyError{Machine: s.machine, Host: s.readyHost, Port: port, Timeout: s.readyTimeout}
	}
	return nil
}

// Teardown powers the machine off and waits up to the poweroff grace for
// the boot process to exit. It does nothing when the boot was never
// started, and leaves the machine untouched after a boot failure so its
// state can be inspected. A boot process still alive after the grace is
// left for StopBoot.
func (s *Session) Teardown(ctx context.Context) error {
	if s.aborted.Load() || s.supervisor.Aborted() {
		s.logger.Warn("boot failed, leaving machine untouched", "machine", s.machine)
		return nil
	}
	if len(s.supervisor.Argv()) == 0 {
		s.logger.Debug("machine never booted, nothing to tear down", "machine", s.machine)
		return nil
	}

	tc := s.executor.Toolchain()
	opts := runner.Options{Check: true, Capture: true}

	_, err := s.RunOnHost(ctx, runner.NewCommand(tc.PoweroffArgs(s.machine), opts))
	if err == nil {
		s.awaitShutdown(ctx)
		return nil
	}

	s.logger.Warn("poweroff failed, terminating machine", "machine", s.machine, "error", err)
	if _, termErr := s.RunOnHost(ctx, runner.NewCommand(tc.TerminateArgs(s.machine), opts)); termErr != nil {
		return errors.Join(
			fmt.Errorf("power off machine %s: %w", s.machine, err),
			fmt.Errorf("terminate machine %s: %w", s.machine, termErr),
		)
	}
	s.awaitShutdown(ctx)
	return nil
}

// awaitShutdown waits for the boot process to exit, since machinectl
// returns as soon as the shutdown is requested.
func (s *Session) awaitShutdown(ctx context.Context) {
	timer := time.NewTimer(s.poweroffGrace)
	defer timer.Stop()

	select {
	case <-s.supervisor.Done():
		s.logger.Debug("machine shut down", "machine", s.machine)
	case <-timer.C:
		s.logger.Warn("machine still running after poweroff", "machine", s.machine, "grace", s.poweroffGrace)
	case <-ctx.Done():
	}
}

// markAborted runs on the caller's goroutine the first time CheckBoot sees
// a boot failure.
func (s *Session) markAborted() {
	s.aborted.Store(true)
}

func (s *Session) annotateFailure(f *supervisor.Failure) *supervisor.Failure {
	annotated := *f
	annotated.Err = fmt.Errorf("boot machine %s: %w", s.machine, f.Err)
	return &annotated
}
