// SPDX-License-Identifier: MPL-2.0

// Package target runs commands in one of three execution contexts: the
// host, a root filesystem that has not been booted (through
// systemd-nspawn), and a booted container machine (through systemd-run).
//
// Each context only rewrites the argv; execution is delegated to a
// CommandRunner. The Toolchain also builds the boot and teardown commands
// used by the harness.
package target
