// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package archive implements a single-stream media archive writer.
//
// A Sink owns exactly one Stream. Callers submit lifecycle operations
// (SetMediaType, Start, Restart, Pause, Stop, Finalize) and data operations
// (ProcessSample, PlaceMarker) from any goroutine. Every call is validated
// against a fixed state/operation legality table under the stream mutex and
// then returns immediately; the accepted operation is executed later on the
// stream's serial work queue, which runs at most one operation at a time and
// in submission order.
//
// Samples and markers travel through the same FIFO entry queue. A marker is
// only signaled after every sample submitted before it was written, or
// dropped by a Stop flush. Completions are published on the event bus;
// Finalize additionally resolves a FinalizeResult.
package archive
