// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the postroj command tree.
//
// NewApp builds the composition root from Dependencies; NewRootCommand
// builds a fresh cobra tree bound to it, so tests can run commands against
// recorded exec functions and in-memory writers.
package cmd
