// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown is returned for every operation after Shutdown.
	ErrShutdown = errors.New("archive: shut down")

	// ErrInvalidState matches every *InvalidStateError via errors.Is.
	ErrInvalidState = errors.New("archive: invalid state for operation")

	// ErrAlreadyFinalizing is returned when Finalize is called while one is outstanding.
	ErrAlreadyFinalizing = errors.New("archive: finalize already in progress")

	// ErrMarkerDropped is the status of a marker flushed by Stop or Flush.
	ErrMarkerDropped = errors.New("archive: marker dropped by flush")

	// ErrSampleDropped is the status of a sample flushed by Stop or Flush.
	ErrSampleDropped = errors.New("archive: sample dropped by flush")

	// ErrNilFinalizeResult is returned by EndFinalize without a result.
	ErrNilFinalizeResult = errors.New("archive: nil finalize result")

	// ErrFinalizePending is returned by FinalizeResult.Err before completion.
	ErrFinalizePending = errors.New("archive: finalize pending")

	// ErrInvalidMediaType is returned for a nil media type or one without a major type.
	ErrInvalidMediaType = errors.New("archive: invalid media type")

	// ErrTypeNotSet is returned when the media type is queried before it was set.
	ErrTypeNotSet = errors.New("archive: media type not set")

	// ErrNilSample is returned by ProcessSample(nil).
	ErrNilSample = errors.New("archive: nil sample")

	// ErrNilMarker is returned by PlaceMarker(nil).
	ErrNilMarker = errors.New("archive: nil marker")

	// ErrMissingDestination is returned when a stream is built without a destination.
	ErrMissingDestination = errors.New("archive: destination is required")

	// ErrStreamsFixed is returned when adding or removing streams.
	ErrStreamsFixed = errors.New("archive: stream sinks are fixed")

	// ErrInvalidStream is returned for an unknown stream index or identifier.
	ErrInvalidStream = errors.New("archive: invalid stream")

	// ErrNoClock is returned when no presentation clock is set.
	ErrNoClock = errors.New("archive: no presentation clock")
)

// InvalidStateError reports an operation that is illegal in the current state.
type InvalidStateError struct {
	Op    Operation
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("archive: operation %s not allowed in state %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// WriteError wraps a destination write or close failure.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("archive: write failed: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// rejectReason is the metrics label for a validation failure.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrShutdown):
		return "shutdown"
	case errors.Is(err, ErrAlreadyFinalizing):
		return "already_finalizing"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	default:
		return "invalid_argument"
	}
}
