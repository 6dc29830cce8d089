// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package destination

import (
	"bytes"
	"sync"
)

// Buffer is an in-memory destination. Abort discards the content.
type Buffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	closed  bool
	aborted bool
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	return b.buf.Write(p)
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	return nil
}

func (b *Buffer) Abort() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.aborted = true
	b.buf.Reset()
	return nil
}

// Bytes returns a copy of everything written so far.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

// Aborted reports whether the content was discarded.
func (b *Buffer) Aborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}
