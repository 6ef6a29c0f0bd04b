// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postroj"

// Outcome labels shared by command and readiness metrics.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Supervisor event labels.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventAborted   = "aborted"
	EventStopped   = "stopped"
	EventReleased  = "released"
)

// Collector holds the registered Prometheus collectors.
type Collector struct {
	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	supervisorEvents  *prometheus.CounterVec
	readinessTotal    *prometheus.CounterVec
	readinessDuration prometheus.Histogram
	supervisorRunning prometheus.Gauge
}

// NewCollector creates a collector registered on the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on registry.
// Tests pass a fresh prometheus.NewRegistry() to stay isolated.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	c := &Collector{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Foreground commands run, by execution target and outcome",
			},
			[]string{"target", "outcome"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Wall time of foreground commands",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"target"},
		),
		supervisorEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supervisor_events_total",
				Help:      "Supervised process lifecycle events",
			},
			[]string{"event"},
		),
		supervisorRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "supervisor_running",
				Help:      "1 while a supervised process is running",
			},
		),
		readinessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readiness_waits_total",
				Help:      "Port readiness waits, by result",
			},
			[]string{"outcome"},
		),
		readinessDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "readiness_wait_seconds",
				Help:      "Time spent waiting for a port to accept connections",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
	}

	registry.MustRegister(
		c.commandsTotal,
		c.commandDuration,
		c.supervisorEvents,
		c.supervisorRunning,
		c.readinessTotal,
		c.readinessDuration,
	)
	return c
}

// ObserveCommand records one foreground command run.
func (c *Collector) ObserveCommand(target, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.commandsTotal.WithLabelValues(target, outcome).Inc()
	c.commandDuration.WithLabelValues(target).Observe(d.Seconds())
}

// ObserveSupervisorEvent records a supervisor lifecycle event and keeps
// the running gauge in step with it.
func (c *Collector) ObserveSupervisorEvent(event string) {
	if c == nil {
		return
	}
	c.supervisorEvents.WithLabelValues(event).Inc()
	switch event {
	case EventStarted:
		c.supervisorRunning.Set(1)
	case EventCompleted, EventAborted, EventStopped, EventReleased:
		c.supervisorRunning.Set(0)
	}
}

// ObserveReadiness records the result of one WaitForPort call.
func (c *Collector) ObserveReadiness(ready bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ready {
		outcome = OutcomeFailure
	}
	c.readinessTotal.WithLabelValues(outcome).Inc()
	c.readinessDuration.Observe(d.Seconds())
}
