// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"math"
	"time"
)

// State is the lifecycle state of a stream.
type State int

const (
	StateTypeNotSet State = iota // no media type set
	StateReady                   // media type set, never started
	StateStarted
	StateStopped
	StatePaused
	StateFinalized // terminal

	stateCount = int(StateFinalized) + 1
)

var stateNames = [stateCount]string{
	StateTypeNotSet: "TYPE_NOT_SET",
	StateReady:      "READY",
	StateStarted:    "STARTED",
	StateStopped:    "STOPPED",
	StatePaused:     "PAUSED",
	StateFinalized:  "FINALIZED",
}

func (s State) String() string {
	if s < 0 || int(s) >= stateCount {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// IsTerminal reports whether no operation is legal in s.
func (s State) IsTerminal() bool {
	return s == StateFinalized
}

// Operation is an operation a caller can submit to a stream.
type Operation int

const (
	OpSetMediaType Operation = iota
	OpStart
	OpRestart
	OpPause
	OpStop
	OpProcessSample
	OpPlaceMarker
	OpFinalize
	OpFlush

	operationCount = int(OpFlush) + 1
)

var operationNames = [operationCount]string{
	OpSetMediaType:  "set_media_type",
	OpStart:         "start",
	OpRestart:       "restart",
	OpPause:         "pause",
	OpStop:          "stop",
	OpProcessSample: "process_sample",
	OpPlaceMarker:   "place_marker",
	OpFinalize:      "finalize",
	OpFlush:         "flush",
}

func (o Operation) String() string {
	if o < 0 || int(o) >= operationCount {
		return "unknown"
	}
	return operationNames[o]
}

// FlushState selects what a queue drain does with samples.
type FlushState int

const (
	DropSamples FlushState = iota
	WriteSamples
)

func (f FlushState) String() string {
	if f == DropSamples {
		return "drop"
	}
	return "write"
}

// CurrentPosition passed as a start offset keeps the previously recorded one.
const CurrentPosition time.Duration = math.MaxInt64

// Characteristics describes the sink to its host.
type Characteristics uint32

const (
	// FixedStreams: streams cannot be added or removed.
	FixedStreams Characteristics = 1 << iota
	// Rateless: the sink does not pace samples against the clock.
	Rateless
)

// MediaType is the format of the stream. It is opaque to the archive and
// immutable once set.
type MediaType struct {
	Major      string
	Subtype    string
	Attributes map[string]string
}

func (m *MediaType) clone() *MediaType {
	out := &MediaType{Major: m.Major, Subtype: m.Subtype}
	if len(m.Attributes) > 0 {
		out.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
