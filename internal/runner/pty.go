// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/creack/pty"
	"github.com/muesli/cancelreader"
)

// runPTY runs c on a fresh pseudo-terminal. The PTY merges stdout and
// stderr, so only Result.Stdout is populated in capture mode. Line endings
// are normalized back from the terminal's CRLF.
func (r *Runner) runPTY(ctx context.Context, c Command) (Result, error) {
	argv := c.Argv()
	cmd := r.execCommand(ctx, argv[0], argv[1:]...)

	restore := r.guardTerminal(c.opts)
	defer restore()

	master, err := pty.Start(cmd)
	if err != nil {
		return Result{Argv: argv}, r.launchFailed(c, err)
	}
	stopInput := func() {}
	// master goes first so a forwarder blocked writing to it returns.
	defer func() {
		_ = master.Close()
		stopInput()
	}()

	if c.opts.Passthrough {
		if in := usableReader(r.stdin); in != nil && !isTerminalReader(in) {
			// A terminal on stdin would be read forever; only forward
			// finite input such as pipes and files.
			stopInput = r.forwardInput(master, in)
		}
	}

	var captured bytes.Buffer
	sinks := make([]io.Writer, 0, 3)
	if c.opts.Capture {
		sinks = append(sinks, &captured)
	}
	if c.opts.Passthrough {
		if w := usableWriter(r.stdout); w != nil {
			sinks = append(sinks, w)
		}
	}
	var tail *TailBuffer
	if c.opts.Check && !c.opts.Capture {
		tail = NewTailBuffer(DefaultTailLimit)
		sinks = append(sinks, tail)
	}

	if _, copyErr := io.Copy(io.MultiWriter(sinks...), master); copyErr != nil && !isPTYClosed(copyErr) {
		r.logger.Debug("pty read failed", "argv", c.String(), "error", copyErr)
	}
	waitErr := cmd.Wait()

	result := Result{Argv: argv}
	output := ""
	if c.opts.Capture {
		result.Captured = true
		result.Stdout = normalizeNewlines(captured.String())
		output = result.Stdout
	} else if tail != nil {
		output = normalizeNewlines(tail.String())
	}

	return r.finish(c, result, waitErr, output)
}

// forwardInput copies in to dst until in is exhausted or the returned
// function is called. Stopping waits for the copy to return when the read
// can be interrupted, which is the case for pipes. Other readers stop
// consuming input after their current Read.
func (r *Runner) forwardInput(dst io.Writer, in io.Reader) (stop func()) {
	cr, err := cancelreader.NewReader(in)
	if err != nil {
		// Regular files cannot be polled. They end at EOF anyway.
		r.logger.Debug("stdin is not cancelable", "error", err)
		go func() { _, _ = io.Copy(dst, in) }()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(dst, cr); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
			r.logger.Debug("stdin forwarding stopped", "error", err)
		}
	}()
	return func() {
		if cr.Cancel() {
			<-done
		}
		_ = cr.Close()
	}
}

func (r *Runner) launchFailed(c Command, err error) error {
	r.logger.Error("failed to launch process", "argv", c.String(), "error", err)
	return &LaunchError{Argv: c.Argv(), Err: err}
}

// isPTYClosed reports whether err is the EIO Linux returns from a PTY
// master once the slave side has been closed by the exiting child.
func isPTYClosed(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, syscall.EIO)
	}
	return errors.Is(err, syscall.EIO)
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
