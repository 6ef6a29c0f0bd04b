// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet/log loggers handed to every
// component. Components never reach for a global logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Supported formatter names.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

var (
	// ErrInvalidLevel is returned when a level string is not recognized.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrInvalidFormat is returned when a formatter name is not recognized.
	ErrInvalidFormat = errors.New("invalid log format")

	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{FormatText, FormatJSON, FormatLogfmt}
)

type (
	// Options configures New.
	Options struct {
		// Level is one of debug, info, warn, error. Empty means info.
		Level string
		// Format is one of text, json, logfmt. Empty means text.
		Format string
		// Prefix is prepended to every line, e.g. the machine name.
		Prefix string
		// Timestamps enables a time field on every line.
		Timestamps bool
	}

	// InvalidLevelError is returned when Options.Level is not recognized.
	InvalidLevelError struct {
		Value string
	}

	// InvalidFormatError is returned when Options.Format is not recognized.
	InvalidFormatError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: %s)", e.Value, strings.Join(validLevels, ", "))
}

// Unwrap returns ErrInvalidLevel for errors.Is() compatibility.
func (e *InvalidLevelError) Unwrap() error { return ErrInvalidLevel }

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: %s)", e.Value, strings.Join(validFormats, ", "))
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// Validate checks the level and format names.
func (o Options) Validate() error {
	if o.Level != "" && !slices.Contains(validLevels, strings.ToLower(o.Level)) {
		return &InvalidLevelError{Value: o.Level}
	}
	if o.Format != "" && !slices.Contains(validFormats, strings.ToLower(o.Format)) {
		return &InvalidFormatError{Value: o.Format}
	}
	return nil
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, &InvalidLevelError{Value: opts.Level}
		}
		level = parsed
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter(opts.Format),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.RFC3339,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func formatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case FormatJSON:
		return log.JSONFormatter
	case FormatLogfmt:
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
