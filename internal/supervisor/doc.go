// SPDX-License-Identifier: MPL-2.0

// Package supervisor runs one long-lived process (typically
// `systemd-nspawn --boot`) on a worker goroutine and reports its failure
// back to the controlling goroutine.
//
// The worker never blocks the caller. When the process fails, the worker
// publishes a Failure into a single-slot channel and only then raises the
// abort flag; Check observes the flag within a bounded wait and returns the
// failure as a *SupervisedProcessFailedError in the caller's goroutine.
//
// A Supervisor is single-use: the abort flag is never cleared and a
// stopped supervisor cannot be restarted. Callers must call Stop on every
// path, including after a successful boot.
//
// State machine:
//
//	Idle -> Running -> Completed -> Stopped
//	                -> Aborted   -> Stopped
//	Idle -> Stopped (Stop before Start)
package supervisor
