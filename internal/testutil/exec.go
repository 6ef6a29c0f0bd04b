// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"os/exec"
	"slices"
	"sync"
)

// ExecRecorder stands in for exec.CommandContext. It records every argv it
// is asked to build and runs a substitute command instead, so argv
// builders can be tested without the systemd tools installed.
type ExecRecorder struct {
	mu         sync.Mutex
	calls      [][]string
	substitute []string
}

// NewExecRecorder returns a recorder that runs substitute in place of every
// requested command. An empty substitute runs "true".
func NewExecRecorder(substitute ...string) *ExecRecorder {
	if len(substitute) == 0 {
		substitute = []string{"true"}
	}
	return &ExecRecorder{substitute: slices.Clone(substitute)}
}

// Command matches the exec.CommandContext signature.
func (r *ExecRecorder) Command(ctx context.Context, name string, arg ...string) *exec.Cmd {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, arg...))
	r.mu.Unlock()

	return exec.CommandContext(ctx, r.substitute[0], r.substitute[1:]...)
}

// Calls returns a copy of every recorded argv in call order.
func (r *ExecRecorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = slices.Clone(c)
	}
	return out
}
