// SPDX-License-Identifier: MPL-2.0

package runner

// Result describes a finished command.
type Result struct {
	// Argv is the command line that was actually executed.
	Argv []string
	// ExitCode is the exit status of the child.
	ExitCode ExitCode
	// Stdout holds captured standard output (Capture only).
	Stdout string
	// Stderr holds captured standard error (Capture only).
	Stderr string
	// Captured reports whether Stdout/Stderr were collected.
	Captured bool
}

// Success returns true if the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode.IsSuccess()
}

// Output returns stdout followed by stderr, the form attached to failures.
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + r.Stderr
}
