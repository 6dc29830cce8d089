// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

// pendingOperation is the unit of work handed to the dispatcher.
type pendingOperation struct {
	op Operation
	// epoch is the stop epoch right after the operation was accepted.
	epoch uint64
	// seq orders operations in submission order; used in events, logs and spans.
	seq uint64
}
