// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/postroj/postroj/internal/runner"
)

// ErrSupervisedProcessFailed is the sentinel matched by every
// *SupervisedProcessFailedError.
var ErrSupervisedProcessFailed = errors.New("supervised process failed")

type (
	// Failure describes why the supervised process aborted. It is built on
	// the worker goroutine and handed to the caller through Check.
	Failure struct {
		// Err is the original error: a *runner.CommandFailedError for a
		// non-zero exit, a *runner.LaunchError when the process never
		// started, or a context error when cancelled before launch.
		Err error
		// Argv is the command that was supervised.
		Argv []string
		// ExitCode is set when the process ran and exited.
		ExitCode runner.ExitCode
		// Output is the tail of the combined output.
		Output string
		// Stack is the worker goroutine's stack at the point of failure.
		Stack []byte
	}

	// SupervisedProcessFailedError is returned by Check after the worker
	// aborted. errors.Is and errors.As see through it to Failure.Err.
	SupervisedProcessFailedError struct {
		Failure *Failure
	}
)

// Message returns the original error message.
func (f *Failure) Message() string {
	if f == nil || f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Error implements the error interface. The captured output is included
// unless the original error already carries it.
func (e *SupervisedProcessFailedError) Error() string {
	f := e.Failure
	if f == nil {
		return ErrSupervisedProcessFailed.Error()
	}

	msg := fmt.Sprintf("supervised process %s failed: %s", runner.FormatArgv(f.Argv), f.Message())
	if out := strings.TrimRight(f.Output, "\n"); out != "" && !strings.Contains(msg, out) {
		msg += "\nThe output was:\n" + out
	}
	return msg
}

// Unwrap returns both the original error and ErrSupervisedProcessFailed.
func (e *SupervisedProcessFailedError) Unwrap() []error {
	if e.Failure == nil || e.Failure.Err == nil {
		return []error{ErrSupervisedProcessFailed}
	}
	return []error{e.Failure.Err, ErrSupervisedProcessFailed}
}
