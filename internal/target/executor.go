// SPDX-License-Identifier: MPL-2.0

package target

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/postroj/postroj/internal/metrics"
	"github.com/postroj/postroj/internal/runner"
)

type (
	// CommandRunner executes a fully resolved command. *runner.Runner
	// implements it.
	CommandRunner interface {
		Run(ctx context.Context, c runner.Command) (runner.Result, error)
	}

	// Recorder receives one observation per executed command.
	// *metrics.Collector implements it.
	Recorder interface {
		ObserveCommand(target, outcome string, d time.Duration)
	}

	// ExecutorOption configures an Executor.
	ExecutorOption func(*Executor)

	// Executor resolves a Target's argv and hands the result to a
	// CommandRunner.
	Executor struct {
		runner    CommandRunner
		toolchain Toolchain
		logger    *log.Logger
		recorder  Recorder
	}
)

// WithToolchain replaces the whole toolchain.
func WithToolchain(tc Toolchain) ExecutorOption {
	return func(e *Executor) {
		e.toolchain = tc.withDefaults()
	}
}

// WithNspawn sets the systemd-nspawn binary.
func WithNspawn(path string) ExecutorOption {
	return func(e *Executor) {
		if path != "" {
			e.toolchain.Nspawn = path
		}
	}
}

// WithSystemdRun sets the systemd-run binary.
func WithSystemdRun(path string) ExecutorOption {
	return func(e *Executor) {
		if path != "" {
			e.toolchain.SystemdRun = path
		}
	}
}

// WithMachinectl sets the machinectl binary.
func WithMachinectl(path string) ExecutorOption {
	return func(e *Executor) {
		if path != "" {
			e.toolchain.Machinectl = path
		}
	}
}

// WithResolvConf sets the host resolver file bound into rootfs runs.
func WithResolvConf(path string) ExecutorOption {
	return func(e *Executor) {
		if path != "" {
			e.toolchain.ResolvConf = path
		}
	}
}

// WithLogger sets the logger used to announce each command.
func WithLogger(logger *log.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = r
	}
}

// NewExecutor creates an Executor delegating to r.
func NewExecutor(r CommandRunner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runner:    r,
		toolchain: DefaultToolchain(),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Toolchain returns the effective toolchain.
func (e *Executor) Toolchain() Toolchain {
	return e.toolchain
}

// Resolve returns the command that runs c in t, without running it.
func (e *Executor) Resolve(t Target, c runner.Command) (runner.Command, error) {
	if err := t.Validate(); err != nil {
		return runner.Command{}, err
	}
	if err := c.Validate(); err != nil {
		return runner.Command{}, err
	}

	resolved := c.WithArgv(t.wrap(e.toolchain, c.Argv()))
	if ct, ok := t.(Container); ok && ct.PTY {
		opts := resolved.Options()
		opts.PTY = true
		resolved = resolved.WithOptions(opts)
	}
	return resolved, nil
}

// Run resolves c for t, logs it and executes it.
func (e *Executor) Run(ctx context.Context, t Target, c runner.Command) (runner.Result, error) {
	resolved, err := e.Resolve(t, c)
	if err != nil {
		return runner.Result{}, err
	}

	e.logger.Info("running command", "target", t.Describe(), "argv", resolved.String())

	start := time.Now()
	result, err := e.runner.Run(ctx, resolved)
	if e.recorder != nil {
		e.recorder.ObserveCommand(t.Kind().String(), outcome(result, err), time.Since(start))
	}
	return result, err
}

func outcome(result runner.Result, err error) string {
	switch {
	case err == nil && result.Success():
		return metrics.OutcomeSuccess
	case err == nil, errors.Is(err, runner.ErrCommandFailed):
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeError
	}
}
