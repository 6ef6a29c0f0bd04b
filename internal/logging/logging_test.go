// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "", wantInfo: true},
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "INFO", wantInfo: true},
		{level: "warn"},
		{level: "error"},
	}

	for _, tt := range tests {
		t.Run("level="+tt.level, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger, err := New(&buf, Options{Level: tt.level})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			logger.Debug("debug-line")
			logger.Info("info-line")

			if got := strings.Contains(buf.String(), "debug-line"); got != tt.wantDebug {
				t.Errorf("debug emitted = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(buf.String(), "info-line"); got != tt.wantInfo {
				t.Errorf("info emitted = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, Options{Format: FormatJSON, Prefix: "machine-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("booting", "directory", "/var/lib/postroj/images/debian-bullseye")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if line["msg"] != "booting" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["directory"] != "/var/lib/postroj/images/debian-bullseye" {
		t.Errorf("directory = %v", line["directory"])
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	_, err := New(&bytes.Buffer{}, Options{Level: "loud"})
	if !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}

	_, err = New(&bytes.Buffer{}, Options{Format: "yaml"})
	var formatErr *InvalidFormatError
	if !errors.As(err, &formatErr) || formatErr.Value != "yaml" {
		t.Errorf("expected *InvalidFormatError for yaml, got %v", err)
	}
}
