// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/postroj/postroj/internal/target"
)

// ErrPortNotReady is the sentinel wrapped by PortNotReadyError.
var ErrPortNotReady = errors.New("port not ready")

// PortNotReadyError is returned by Boot when the machine booted but the
// requested port never accepted a connection.
type PortNotReadyError struct {
	Machine target.MachineName
	Host    string
	Port    int
	Timeout time.Duration
}

// Error implements the error interface.
func (e *PortNotReadyError) Error() string {
	msg := fmt.Sprintf("port %d on %s not ready after %s", e.Port, e.Host, e.Timeout)
	if e.Machine != "" {
		msg = "machine " + e.Machine.String() + ": " + msg
	}
	return msg
}

// Unwrap returns ErrPortNotReady for errors.Is() compatibility.
func (e *PortNotReadyError) Unwrap() error { return ErrPortNotReady }
