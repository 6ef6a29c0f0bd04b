// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/postroj/postroj/internal/metrics"
	"github.com/postroj/postroj/internal/runner"
)

// Supervisor owns a single background process.
type Supervisor struct {
	// Lock-free state reads.
	state         atomic.Int32
	aborted       atomic.Bool
	stopRequested atomic.Bool
	released      atomic.Bool

	// procMu guards the OS process handle. killed is set only when Stop
	// actually delivered a signal to the process group.
	procMu sync.Mutex
	cmd    *exec.Cmd
	exited bool
	killed bool

	// failureCh holds the single failure record. It is written once by the
	// worker before abortCh is closed.
	failureCh chan *Failure
	abortCh   chan struct{}
	done      chan struct{}

	failureOnce sync.Once
	failure     *Failure

	// argv is guarded by procMu.
	argv []string
	tail *runner.TailBuffer

	output       io.Writer
	checkTimeout time.Duration
	waitDelay    time.Duration
	onAbort      func()
	onError      func(*Failure) *Failure
	execCommand  runner.ExecCommandFunc
	logger       *log.Logger
	recorder     Recorder
}

// New creates an idle Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		failureCh:    make(chan *Failure, 1),
		abortCh:      make(chan struct{}),
		done:         make(chan struct{}),
		tail:         runner.NewTailBuffer(runner.DefaultTailLimit),
		checkTimeout: DefaultCheckTimeout,
		waitDelay:    DefaultWaitDelay,
		execCommand:  exec.CommandContext,
		logger:       log.New(io.Discard),
	}
	s.state.Store(int32(StateIdle))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state (atomic, lock-free read).
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Aborted reports whether the worker has published a failure.
func (s *Supervisor) Aborted() bool {
	return s.aborted.Load()
}

// Done returns a channel closed when the worker has returned, or when the
// supervisor was stopped without ever starting.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// PID returns the process ID of the running process, or 0.
func (s *Supervisor) PID() int {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil || s.exited {
		return 0
	}
	return s.cmd.Process.Pid
}

// Argv returns the supervised command, or nil before Start.
func (s *Supervisor) Argv() []string {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	return slices.Clone(s.argv)
}

// Start launches argv on a worker goroutine and returns immediately.
//
// ctx is consulted once, right before the launch; cancelling it later has
// no effect on the process. Use Stop to terminate it.
func (s *Supervisor) Start(ctx context.Context, argv []string) error {
	if err := runner.NewCommand(argv, runner.Options{}).Validate(); err != nil {
		return err
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return &AlreadyStartedError{State: s.State()}
	}

	argv = slices.Clone(argv)
	s.procMu.Lock()
	s.argv = argv
	s.procMu.Unlock()

	s.record(metrics.EventStarted)
	go s.work(ctx, argv)
	return nil
}

func (s *Supervisor) work(ctx context.Context, argv []string) {
	defer close(s.done)

	if err := ctx.Err(); err != nil {
		s.abort(&Failure{Err: fmt.Errorf("cancelled before launch: %w", err), Argv: argv})
		return
	}

	cmd := s.execCommand(context.WithoutCancel(ctx), argv[0], argv[1:]...)
	out := io.Writer(s.tail)
	if s.output != nil {
		out = io.MultiWriter(s.output, s.tail)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	// Descendants that leave the process group can hold the output pipes
	// open long after the process itself is gone.
	cmd.WaitDelay = s.waitDelay
	setProcessGroup(cmd)

	s.procMu.Lock()
	if s.stopRequested.Load() {
		s.procMu.Unlock()
		return
	}
	err := cmd.Start()
	if err == nil {
		s.cmd = cmd
	}
	s.procMu.Unlock()

	if err != nil {
		s.abort(&Failure{Err: &runner.LaunchError{Argv: argv, Err: err}, Argv: argv})
		return
	}
	s.logger.Info("started supervised process", "argv", runner.FormatArgv(argv), "pid", cmd.Process.Pid)

	err = cmd.Wait()

	s.procMu.Lock()
	s.exited = true
	killed := s.killed
	s.procMu.Unlock()

	// SIGKILL cannot be handled, so a process Stop reached has no exit code.
	// One with an exit code ended on its own, even if Stop raced it.
	if killed && cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == -1 {
		s.logger.Debug("supervised process stopped", "argv", runner.FormatArgv(argv))
		return
	}
	if s.released.Load() {
		s.logger.Debug("released process exited", "argv", runner.FormatArgv(argv), "error", err)
		return
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		s.logger.Warn("supervised process exited but left its output open", "argv", runner.FormatArgv(argv))
		err = nil
	}

	code, exited := runner.ExitCodeOf(err)
	switch {
	case err == nil:
		s.state.CompareAndSwap(int32(StateRunning), int32(StateCompleted))
		s.logger.Info("supervised process completed", "argv", runner.FormatArgv(argv))
		s.record(metrics.EventCompleted)
	case exited:
		output := s.tail.String()
		s.abort(&Failure{
			Err:      &runner.CommandFailedError{Argv: argv, ExitCode: code, Output: output},
			Argv:     argv,
			ExitCode: code,
			Output:   output,
		})
	default:
		s.abort(&Failure{Err: fmt.Errorf("wait for supervised process: %w", err), Argv: argv, Output: s.tail.String()})
	}
}

// abort publishes f and then raises the abort flag. Runs on the worker.
func (s *Supervisor) abort(f *Failure) {
	f.Stack = debug.Stack()
	s.failureCh <- f
	s.aborted.Store(true)
	s.state.CompareAndSwap(int32(StateRunning), int32(StateAborted))
	close(s.abortCh)

	s.logger.Error("supervised process failed", "argv", runner.FormatArgv(f.Argv), "error", f.Err)
	s.record(metrics.EventAborted)
}

// Check waits up to timeout for the worker to abort. It returns nil if no
// abort happened within the window, otherwise the failure. A non-positive
// timeout uses the configured default. Once aborted, every call returns
// the same failure immediately.
func (s *Supervisor) Check(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.checkTimeout
	}

	if !s.aborted.Load() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-s.abortCh:
		case <-timer.C:
			return nil
		}
	}

	return &SupervisedProcessFailedError{Failure: s.takeFailure()}
}

// takeFailure consumes the record exactly once and runs the hooks.
func (s *Supervisor) takeFailure() *Failure {
	s.failureOnce.Do(func() {
		f := <-s.failureCh
		if s.onAbort != nil {
			s.onAbort()
		}
		if s.onError != nil {
			if replaced := s.onError(f); replaced != nil {
				f = replaced
			}
		}
		s.failure = f
	})
	return s.failure
}

// Stop kills the process group if the process is alive, waits for the
// worker to return, and releases the handle. It is safe to call before
// Start and any number of times.
func (s *Supervisor) Stop() error {
	for {
		switch s.State() {
		case StateStopped:
			return nil
		case StateIdle:
			if s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
				close(s.done)
				return nil
			}
			continue
		}
		break
	}

	s.stopRequested.Store(true)

	s.procMu.Lock()
	if s.cmd != nil && s.cmd.Process != nil && !s.exited {
		pid := s.cmd.Process.Pid
		signalled, err := killProcessGroup(s.cmd.Process)
		if err != nil {
			s.procMu.Unlock()
			return fmt.Errorf("kill supervised process group %d: %w", pid, err)
		}
		if signalled {
			s.killed = true
			s.logger.Debug("killed supervised process group", "pid", pid)
		}
	}
	s.procMu.Unlock()

	<-s.done

	s.procMu.Lock()
	s.cmd = nil
	s.procMu.Unlock()

	if State(s.state.Swap(int32(StateStopped))) != StateStopped {
		s.record(metrics.EventStopped)
	}
	return nil
}

// Release gives up ownership of the process without signalling it, so it
// keeps running after the caller exits. Unlike Stop it does not wait for
// the worker, and later failures of the process are not reported. Stop
// after Release is a no-op.
func (s *Supervisor) Release() {
	for {
		switch s.State() {
		case StateStopped:
			return
		case StateIdle:
			if s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
				close(s.done)
				return
			}
			continue
		}
		break
	}

	s.released.Store(true)
	if State(s.state.Swap(int32(StateStopped))) != StateStopped {
		s.logger.Info("released supervised process", "argv", runner.FormatArgv(s.Argv()), "pid", s.PID())
		s.record(metrics.EventReleased)
	}
}

func (s *Supervisor) record(event string) {
	if s.recorder != nil {
		s.recorder.ObserveSupervisorEvent(event)
	}
}
