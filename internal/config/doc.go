// SPDX-License-Identifier: MPL-2.0

// Package config handles postroj configuration using Viper with CUE as the
// file format.
//
// Configuration is read from $XDG_CONFIG_HOME/postroj/config.cue
// (~/.config/postroj/config.cue when unset), then ./config.cue, or from an
// explicit path. Files are validated against the embedded CUE schema
// (config_schema.cue) before being merged over the defaults. Environment
// variables prefixed with POSTROJ_ override both, e.g.
// POSTROJ_READINESS_TIMEOUT=30s.
package config
