// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"errors"
	"testing"
	"time"
)

func TestPortNotReadyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *PortNotReadyError
		want string
	}{
		{
			name: "with machine",
			err:  &PortNotReadyError{Machine: "m1", Host: "localhost", Port: 80, Timeout: 5 * time.Second},
			want: "machine m1: port 80 on localhost not ready after 5s",
		},
		{
			name: "without machine",
			err:  &PortNotReadyError{Host: "127.0.0.1", Port: 8080, Timeout: 300 * time.Millisecond},
			want: "port 8080 on 127.0.0.1 not ready after 300ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, ErrPortNotReady) {
				t.Error("errors.Is(err, ErrPortNotReady) = false")
			}
		})
	}
}
