// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes Prometheus instrumentation for command runs, the
// boot supervisor, and readiness probes.
//
// A *Collector is nil-safe: every Observe method on a nil receiver is a
// no-op, so components can hold one unconditionally.
package metrics
