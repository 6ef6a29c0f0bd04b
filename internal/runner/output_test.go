// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"strings"
	"testing"
)

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		limit  int
		writes []string
		want   string
	}{
		{name: "under limit", limit: 10, writes: []string{"abc", "def"}, want: "abcdef"},
		{name: "trims oldest", limit: 5, writes: []string{"abc", "defg"}, want: "cdefg"},
		{name: "single oversized write", limit: 3, writes: []string{"abcdef"}, want: "def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := NewTailBuffer(tt.limit)
			for _, w := range tt.writes {
				n, err := buf.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v", w, n, err)
				}
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTailBuffer_DefaultLimit(t *testing.T) {
	t.Parallel()

	buf := NewTailBuffer(0)
	_, _ = buf.Write([]byte(strings.Repeat("x", DefaultTailLimit+10)))
	if got := len(buf.String()); got != DefaultTailLimit {
		t.Errorf("len = %d, want %d", got, DefaultTailLimit)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if !ExitCode(0).IsSuccess() {
		t.Error("0 should be success")
	}
	if ExitCode(1).IsSuccess() {
		t.Error("1 should not be success")
	}
	if got := ExitCode(137).String(); got != "137" {
		t.Errorf("String() = %q", got)
	}

	code, ok := ExitCodeOf(nil)
	if !ok || code != 0 {
		t.Errorf("ExitCodeOf(nil) = %d, %v", code, ok)
	}
}
