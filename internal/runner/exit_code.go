// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"
)

// signalExitBase is added to the signal number of a child killed by a signal,
// the same convention POSIX shells use for $?.
const signalExitBase = 128

// ExitCode represents a process exit status code.
// The zero value (0) means success.
type ExitCode int

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// ExitCodeOf extracts the exit code from an error returned by exec.Cmd.Run
// or Wait. The boolean is false when err does not describe a finished
// process (launch failures, I/O setup errors).
func ExitCodeOf(err error) (ExitCode, bool) {
	if err == nil {
		return 0, true
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}

	if code := exitErr.ExitCode(); code >= 0 {
		return ExitCode(code), true
	}

	// ExitCode() reports -1 for signal-terminated children.
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitCode(signalExitBase + int(ws.Signal())), true
	}
	return 1, true
}
