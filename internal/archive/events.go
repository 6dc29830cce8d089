// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import "encoding/json"

// EventType identifies a stream event.
type EventType string

const (
	// EventStarted completes Start and Restart. Held entries are written
	// after it.
	EventStarted EventType = "stream.started"
	// EventPaused completes Pause.
	EventPaused EventType = "stream.paused"
	// EventStopped completes Stop after the flush.
	EventStopped EventType = "stream.stopped"
	// EventRequestSample completes one sample once it is written, fails or
	// is dropped, and asks for the next one. Seq is the sample's ProcessSample.
	EventRequestSample EventType = "stream.request_sample"
	// EventMarker completes PlaceMarker. Seq is the marker's PlaceMarker and
	// Value is the marker context.
	EventMarker EventType = "stream.marker"
	// EventError reports the first destination failure of the stream. It is
	// not the completion of any operation.
	EventError EventType = "stream.error"
)

// Event is published on the stream's topic.
type Event struct {
	Type       EventType
	StreamID   string
	Seq        uint64 // submission sequence of the completed operation
	Status     error
	MarkerType MarkerType
	Value      any
}

func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type       EventType `json:"type"`
		StreamID   string    `json:"stream_id"`
		Seq        uint64    `json:"seq"`
		Status     string    `json:"status,omitempty"`
		MarkerType string    `json:"marker_type,omitempty"`
		Value      any       `json:"value,omitempty"`
	}
	w := wire{Type: e.Type, StreamID: e.StreamID, Seq: e.Seq, Value: e.Value}
	if e.Status != nil {
		w.Status = e.Status.Error()
	}
	if e.Type == EventMarker {
		w.MarkerType = e.MarkerType.String()
	}
	return json.Marshal(w)
}
