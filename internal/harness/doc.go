// SPDX-License-Identifier: MPL-2.0

// Package harness ties the execution targets, the boot supervisor and the
// readiness poller to one machine.
//
// A Session is built for a rootfs directory and a machine name. It runs
// foreground commands on the host, inside the unbooted rootfs, or inside
// the booted container; boots the machine in the background; and powers it
// off again. If the boot supervisor reports a failure, the session is marked
// aborted and Teardown leaves the machine alone.
package harness
