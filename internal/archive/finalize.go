// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"context"
	"sync"
)

// FinalizeResult completes when a Finalize has drained the queue and closed
// the destination. It resolves exactly once.
type FinalizeResult struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFinalizeResult() *FinalizeResult {
	return &FinalizeResult{done: make(chan struct{})}
}

// complete resolves the result. Later calls are ignored and return false.
func (r *FinalizeResult) complete(err error) bool {
	resolved := false
	r.once.Do(func() {
		r.err = err
		close(r.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the result is resolved.
func (r *FinalizeResult) Done() <-chan struct{} {
	return r.done
}

// Err returns the final write status, or ErrFinalizePending.
func (r *FinalizeResult) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return ErrFinalizePending
	}
}

// Wait blocks until the result resolves or ctx is done.
func (r *FinalizeResult) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
