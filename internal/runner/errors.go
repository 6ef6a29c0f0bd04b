// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCommandFailed is the sentinel error wrapped by CommandFailedError.
var ErrCommandFailed = errors.New("command failed")

// CommandFailedError is returned by Run when a checked command exits
// non-zero. Output holds whatever the runner saw of the child's output:
// the captured streams, or the tail of a discarded stream. It is empty
// when the output went straight to the terminal.
type CommandFailedError struct {
	Argv     []string
	ExitCode ExitCode
	Output   string
}

// Error implements the error interface. The output is appended so a
// single log line or CLI message carries the external tool's complaint.
func (e *CommandFailedError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "command %s exited with status %d", FormatArgv(e.Argv), e.ExitCode)
	if out := strings.TrimRight(e.Output, "\n"); out != "" {
		msg.WriteString(". The output was:\n")
		msg.WriteString(out)
	}
	return msg.String()
}

// Unwrap returns ErrCommandFailed for errors.Is() compatibility.
func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }

// LaunchError is returned when the child could not be started at all
// (missing executable, permission denied, PTY allocation failure).
type LaunchError struct {
	Argv []string
	Err  error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", FormatArgv(e.Argv), e.Err)
}

// Unwrap returns the underlying exec error.
func (e *LaunchError) Unwrap() error { return e.Err }
