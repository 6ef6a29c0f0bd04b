// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes commands synchronously. It is safe for sequential
	// use from one goroutine; concurrent Run calls share the configured
	// standard streams.
	Runner struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = fn
	}
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStdio replaces the streams used for passthrough. A nil stream
// discards output (or provides no input).
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdin = stdin
		r.stdout = stdout
		r.stderr = stderr
	}
}

// New creates a Runner bound to the process's standard streams.
func New(opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		logger:      log.New(io.Discard),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes c and waits for it to exit.
//
// A launch failure is returned as *LaunchError regardless of Check. A
// non-zero exit is returned as *CommandFailedError only when Check is set;
// otherwise the exit code is reported in the Result with a nil error.
//
// With Passthrough alone the child writes straight to the runner's
// streams, so the error's Output is empty: the output is already on the
// terminal. Set Capture as well to get it attached.
func (r *Runner) Run(ctx context.Context, c Command) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	if c.opts.PTY {
		return r.runPTY(ctx, c)
	}

	argv := c.Argv()
	cmd := r.execCommand(ctx, argv[0], argv[1:]...)

	out := newExecuteOutput(c.opts, r.stdout, r.stderr)
	cmd.Stdout = out.stdout
	cmd.Stderr = out.stderr
	if c.opts.Passthrough {
		cmd.Stdin = usableReader(r.stdin)
	}

	restore := r.guardTerminal(c.opts)
	err := cmd.Run()
	restore()

	result := Result{Argv: argv}
	if out.captured != nil {
		result.Captured = true
		result.Stdout = out.captured.stdout.String()
		result.Stderr = out.captured.stderr.String()
	}

	return r.finish(c, result, err, out.failureOutput())
}

// finish maps the exec error onto the Result and applies Check.
func (r *Runner) finish(c Command, result Result, err error, output string) (Result, error) {
	code, exited := ExitCodeOf(err)
	if !exited {
		r.logger.Error("failed to launch process", "argv", c.String(), "error", err)
		return result, &LaunchError{Argv: result.Argv, Err: err}
	}
	result.ExitCode = code

	if !c.opts.Check || code.IsSuccess() {
		return result, nil
	}

	failure := &CommandFailedError{Argv: result.Argv, ExitCode: code, Output: output}
	r.logger.Error("process exited with non-zero status",
		"argv", c.String(),
		"exit_code", code,
		"output", strings.TrimRight(output, "\n"),
	)
	return result, failure
}
