// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidArgv is the sentinel error wrapped by InvalidArgvError.
var ErrInvalidArgv = errors.New("invalid argv")

type (
	// Options selects how a Command's output is handled and whether a
	// non-zero exit is an error.
	Options struct {
		// Check turns a non-zero exit into a *CommandFailedError.
		Check bool
		// Passthrough forwards output to the runner's stdout/stderr.
		// Without Capture the child inherits those streams directly.
		Passthrough bool
		// Capture collects stdout and stderr into the Result.
		Capture bool
		// PTY starts the child on a pseudo-terminal. Output is then a
		// single merged stream reported as Result.Stdout.
		PTY bool
	}

	// Command is an immutable argv plus execution options.
	// Use NewCommand to construct one; the zero value has no argv and
	// fails validation.
	Command struct {
		argv []string
		opts Options
	}

	// InvalidArgvError is returned when a Command has no program to run.
	InvalidArgvError struct {
		Argv []string
	}
)

// DefaultOptions returns the options used by most harness invocations:
// checked, forwarded to the terminal, not captured.
func DefaultOptions() Options {
	return Options{Check: true, Passthrough: true}
}

// NewCommand creates a Command from argv. The slice is copied so later
// changes by the caller do not leak into the command.
func NewCommand(argv []string, opts Options) Command {
	return Command{argv: slices.Clone(argv), opts: opts}
}

// Argv returns a copy of the command's argument vector.
func (c Command) Argv() []string { return slices.Clone(c.argv) }

// Options returns the command's execution options.
func (c Command) Options() Options { return c.opts }

// WithArgv returns a copy of c that runs argv with the same options.
func (c Command) WithArgv(argv []string) Command {
	return NewCommand(argv, c.opts)
}

// WithOptions returns a copy of c with opts replacing its options.
func (c Command) WithOptions(opts Options) Command {
	return Command{argv: c.argv, opts: opts}
}

// Validate returns an error if the command has no program name.
func (c Command) Validate() error {
	if len(c.argv) == 0 || strings.TrimSpace(c.argv[0]) == "" {
		return &InvalidArgvError{Argv: c.Argv()}
	}
	return nil
}

// String renders the argv for logs, quoting arguments that contain
// whitespace or quotes.
func (c Command) String() string {
	return FormatArgv(c.argv)
}

// FormatArgv renders argv as a single space-separated line for logs.
func FormatArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\") {
			parts[i] = strconv.Quote(a)
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

// Error implements the error interface.
func (e *InvalidArgvError) Error() string {
	return fmt.Sprintf("invalid argv %q: a program name is required", e.Argv)
}

// Unwrap returns ErrInvalidArgv for errors.Is() compatibility.
func (e *InvalidArgvError) Unwrap() error { return ErrInvalidArgv }
