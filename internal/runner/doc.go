// SPDX-License-Identifier: MPL-2.0

// Package runner executes a single external command to completion.
//
// A Command pairs an argv with Options that decide where output goes:
// captured into the Result, forwarded to the runner's standard streams,
// both (tee), or discarded. With Check set, a non-zero exit becomes a
// *CommandFailedError carrying the exit code and the output seen so far.
//
// Commands are always spawned from an argv, never from a shell string.
// Run blocks until the child exits; there is no timeout of its own.
package runner
