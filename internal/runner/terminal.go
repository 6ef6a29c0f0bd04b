// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"io"
	"os"

	"golang.org/x/term"
)

// guardTerminal snapshots the terminal attached to stdin before an
// interactive run and returns a function that puts it back. Login prompts
// inside a container tend to leave the terminal in raw or no-echo mode.
// When stdin is not a terminal, the returned function does nothing.
func (r *Runner) guardTerminal(opts Options) func() {
	if !opts.Passthrough && !opts.PTY {
		return func() {}
	}

	f, ok := r.stdin.(*os.File)
	if !ok || f == nil {
		return func() {}
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}

	state, err := term.GetState(fd)
	if err != nil {
		r.logger.Debug("could not snapshot terminal state", "error", err)
		return func() {}
	}
	return func() {
		if err := term.Restore(fd, state); err != nil {
			r.logger.Debug("could not restore terminal state", "error", err)
		}
	}
}

// isTerminalReader reports whether in is an *os.File attached to a terminal.
func isTerminalReader(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && f != nil && term.IsTerminal(int(f.Fd()))
}
