// SPDX-License-Identifier: MPL-2.0

// Package readiness polls TCP endpoints until they accept connections.
//
// A timeout is an expected outcome, not an error: WaitForPort returns
// false and leaves the decision to the caller.
package readiness

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// Defaults used by the harness.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 50 * time.Millisecond
	DefaultHost     = "localhost"
)

type (
	// Option configures a Poller.
	Option func(*Poller)

	// Recorder receives one observation per WaitForPort call.
	// *metrics.Collector implements it.
	Recorder interface {
		ObserveReadiness(ready bool, d time.Duration)
	}

	// Poller probes TCP ports. The zero value is not usable; use New.
	Poller struct {
		progress io.Writer
		logger   *log.Logger
		recorder Recorder
		dialer   net.Dialer
	}
)

// WithProgress writes one "." per failed attempt to w, and a newline when
// the wait ends.
func WithProgress(w io.Writer) Option {
	return func(p *Poller) {
		p.progress = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Poller) {
		p.recorder = r
	}
}

// New creates a Poller.
func New(opts ...Option) *Poller {
	p := &Poller{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PortIsUp performs a single connect-and-close probe.
func (p *Poller) PortIsUp(ctx context.Context, host string, port int) bool {
	return p.probe(ctx, host, port) == nil
}

// WaitForPort probes host:port every interval until a connection succeeds
// or timeout elapses. It returns false on timeout or when ctx is done.
// A non-positive timeout or interval uses the package default.
func (p *Poller) WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := address(host, port)
	p.logger.Debug("waiting for port", "addr", addr, "timeout", timeout)

	ready := p.poll(ctx, host, port, interval)
	if p.progress != nil {
		_, _ = io.WriteString(p.progress, "\n")
	}
	if p.recorder != nil {
		p.recorder.ObserveReadiness(ready, time.Since(start))
	}

	if ready {
		p.logger.Info("port is up", "addr", addr, "elapsed", time.Since(start).Round(time.Millisecond))
	} else {
		p.logger.Warn("port did not come up", "addr", addr, "timeout", timeout)
	}
	return ready
}

func (p *Poller) poll(ctx context.Context, host string, port int, interval time.Duration) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.probe(ctx, host, port) == nil {
			return true
		}
		if p.progress != nil {
			_, _ = io.WriteString(p.progress, ".")
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// probe dials once. The attempt is bounded by ctx, so a dial never
// outlives the overall deadline.
func (p *Poller) probe(ctx context.Context, host string, port int) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", address(host, port))
	if err != nil {
		return err
	}
	return conn.Close()
}

func address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// WaitForPort waits with a Poller that has no logger, progress or metrics.
func WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) bool {
	return New().WaitForPort(ctx, host, port, timeout, interval)
}

// PortIsUp probes once with a default Poller.
func PortIsUp(ctx context.Context, host string, port int) bool {
	return New().PortIsUp(ctx, host, port)
}
