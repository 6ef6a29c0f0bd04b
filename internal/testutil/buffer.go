// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"sync"

	"github.com/charmbracelet/log"
)

// SafeBuffer is a bytes.Buffer that a worker goroutine can write while the
// test goroutine reads it.
type SafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewLogger returns a debug-level logger writing plain text into the
// returned buffer.
func NewLogger() (*log.Logger, *SafeBuffer) {
	buf := &SafeBuffer{}
	logger := log.NewWithOptions(buf, log.Options{Level: log.DebugLevel})
	return logger, buf
}
