// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by postroj tests: skipping when a
// system binary is missing, recording argv handed to an exec function,
// goroutine-safe output buffers, and loopback TCP ports.
//
// Helpers take testing.TB and fail the test themselves, so call sites stay
// free of error plumbing.
package testutil
