// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/postroj/postroj/internal/runner"
)

// DefaultCheckTimeout is how long Check waits for an abort when called
// with a non-positive timeout.
const DefaultCheckTimeout = 250 * time.Millisecond

// DefaultWaitDelay bounds how long the worker waits for the process's
// output to close once the process has exited.
const DefaultWaitDelay = 2 * time.Second

type (
	// Option configures a Supervisor.
	Option func(*Supervisor)

	// Recorder receives supervisor lifecycle events.
	// *metrics.Collector implements it.
	Recorder interface {
		ObserveSupervisorEvent(event string)
	}
)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithOutput tees the process's combined output to w.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) {
		s.output = w
	}
}

// WithCheckTimeout sets the default Check timeout.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.checkTimeout = d
		}
	}
}

// WithWaitDelay sets how long to wait for output after the process exits
// before the pipes are closed forcibly.
func WithWaitDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.waitDelay = d
		}
	}
}

// WithOnAbort registers a hook run on the caller's goroutine the first time
// Check observes an abort.
func WithOnAbort(fn func()) Option {
	return func(s *Supervisor) {
		s.onAbort = fn
	}
}

// WithOnError registers a hook that may replace the Failure before Check
// returns it. Returning nil keeps the original.
func WithOnError(fn func(*Failure) *Failure) Option {
	return func(s *Supervisor) {
		s.onError = fn
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn runner.ExecCommandFunc) Option {
	return func(s *Supervisor) {
		s.execCommand = fn
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Supervisor) {
		s.recorder = r
	}
}
