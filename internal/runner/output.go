// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// DefaultTailLimit bounds how much discarded output is kept for diagnostics.
const DefaultTailLimit = 64 * 1024

type (
	// TailBuffer is an io.Writer that keeps only the last limit bytes
	// written to it. It is safe for concurrent use, since exec copies
	// stdout and stderr from separate goroutines.
	TailBuffer struct {
		mu    sync.Mutex
		buf   []byte
		limit int
	}

	// executeOutput holds the writers handed to exec.Cmd for one run.
	executeOutput struct {
		stdout io.Writer
		stderr io.Writer
		// captured is non-nil in capture mode.
		captured *capturedOutput
		// tail is non-nil when output would otherwise be lost.
		tail *TailBuffer
	}

	// capturedOutput holds the capture buffers. Each is written by a
	// single exec copy goroutine.
	capturedOutput struct {
		stdout bytes.Buffer
		stderr bytes.Buffer
	}
)

// NewTailBuffer creates a TailBuffer keeping at most limit bytes.
// A non-positive limit uses DefaultTailLimit.
func NewTailBuffer(limit int) *TailBuffer {
	if limit <= 0 {
		limit = DefaultTailLimit
	}
	return &TailBuffer{limit: limit}
}

// Write appends p, discarding the oldest bytes beyond the limit.
func (t *TailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p) >= t.limit {
		t.buf = append(t.buf[:0], p[len(p)-t.limit:]...)
		return len(p), nil
	}
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

// String returns the retained output.
func (t *TailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

// newExecuteOutput wires the writers for a non-PTY run.
//
//   - capture: buffers, teed to stdout/stderr when passthrough is set.
//   - passthrough only: the runner's streams are handed over unchanged so
//     a terminal stays a terminal for the child.
//   - neither: output is dropped, except for a bounded tail when check is
//     set so a failure can still show what went wrong.
func newExecuteOutput(opts Options, stdout, stderr io.Writer) *executeOutput {
	stdout, stderr = usableWriter(stdout), usableWriter(stderr)

	switch {
	case opts.Capture:
		captured := &capturedOutput{}
		out := &executeOutput{
			stdout:   &captured.stdout,
			stderr:   &captured.stderr,
			captured: captured,
		}
		if opts.Passthrough {
			out.stdout = teeWriter(&captured.stdout, stdout)
			out.stderr = teeWriter(&captured.stderr, stderr)
		}
		return out

	case opts.Passthrough:
		return &executeOutput{stdout: stdout, stderr: stderr}

	case opts.Check:
		tail := NewTailBuffer(DefaultTailLimit)
		return &executeOutput{stdout: tail, stderr: tail, tail: tail}

	default:
		return &executeOutput{}
	}
}

// failureOutput returns the text attached to a CommandFailedError.
func (o *executeOutput) failureOutput() string {
	switch {
	case o.captured != nil:
		return o.captured.stdout.String() + o.captured.stderr.String()
	case o.tail != nil:
		return o.tail.String()
	default:
		return ""
	}
}

// teeWriter writes to primary and, when present, to echo.
func teeWriter(primary, echo io.Writer) io.Writer {
	if echo == nil {
		return primary
	}
	return io.MultiWriter(primary, echo)
}

// usableWriter returns w, or nil when w is an *os.File that cannot be used
// (closed, or not backed by a descriptor). exec treats a nil writer as
// the null device, so an unusable stream degrades to discarding.
func usableWriter(w io.Writer) io.Writer {
	if w == nil {
		return nil
	}
	f, ok := w.(*os.File)
	if !ok {
		return w
	}
	if f == nil {
		return nil
	}
	if _, err := f.Stat(); err != nil {
		return nil
	}
	return f
}

// usableReader is the input counterpart of usableWriter.
func usableReader(r io.Reader) io.Reader {
	if r == nil {
		return nil
	}
	f, ok := r.(*os.File)
	if !ok {
		return r
	}
	if f == nil {
		return nil
	}
	if _, err := f.Stat(); err != nil {
		return nil
	}
	return f
}
