// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

// MarkerType is the kind of a stream marker.
type MarkerType int

const (
	MarkerDefault MarkerType = iota
	MarkerEndOfSegment
	MarkerTick
	MarkerEvent
)

func (t MarkerType) String() string {
	switch t {
	case MarkerDefault:
		return "default"
	case MarkerEndOfSegment:
		return "end_of_segment"
	case MarkerTick:
		return "tick"
	case MarkerEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseMarkerType is the inverse of MarkerType.String.
func ParseMarkerType(s string) (MarkerType, bool) {
	for t := MarkerDefault; t <= MarkerEvent; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return MarkerDefault, false
}

// Marker is an out-of-band signal queued between samples. It is immutable;
// its ordering comes entirely from its position in the entry queue.
type Marker struct {
	typ     MarkerType
	value   any
	context any
}

// NewMarker creates a marker. value and context are opaque to the archive;
// context is handed back in the marker event.
func NewMarker(typ MarkerType, value, context any) *Marker {
	return &Marker{typ: typ, value: value, context: context}
}

func (m *Marker) Type() MarkerType { return m.typ }

func (m *Marker) Value() any { return m.value }

func (m *Marker) Context() any { return m.context }
