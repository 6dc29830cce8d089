// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

// legality says which operations are valid from which states.
// Every cell not listed is false, so the table is total.
//
//	            SetType Start Restart Pause Stop Sample Marker Finalize Flush
//	TypeNotSet     x
//	Ready                 x                                        x       x
//	Started                             x     x     x      x       x       x
//	Stopped               x                                        x       x
//	Paused                x      x            x                    x       x
//	Finalized
var legality = [stateCount][operationCount]bool{
	StateTypeNotSet: {
		OpSetMediaType: true,
	},
	StateReady: {
		OpStart:    true,
		OpFinalize: true,
		OpFlush:    true,
	},
	StateStarted: {
		OpPause:         true,
		OpStop:          true,
		OpProcessSample: true,
		OpPlaceMarker:   true,
		OpFinalize:      true,
		OpFlush:         true,
	},
	StateStopped: {
		OpStart:    true,
		OpFinalize: true,
		OpFlush:    true,
	},
	StatePaused: {
		OpStart:    true,
		OpRestart:  true,
		OpStop:     true,
		OpFinalize: true,
		OpFlush:    true,
	},
	StateFinalized: {},
}

// targetState is the state an accepted operation moves the stream to.
// Data operations and Flush keep the current state.
var targetState = [operationCount]State{
	OpSetMediaType:  StateReady,
	OpStart:         StateStarted,
	OpRestart:       StateStarted,
	OpPause:         StatePaused,
	OpStop:          StateStopped,
	OpProcessSample: -1,
	OpPlaceMarker:   -1,
	OpFinalize:      StateFinalized,
	OpFlush:         -1,
}

// Allowed reports whether op is legal in state s. Out-of-range values are never legal.
func Allowed(s State, op Operation) bool {
	if s < 0 || int(s) >= stateCount || op < 0 || int(op) >= operationCount {
		return false
	}
	return legality[s][op]
}

// States lists every lifecycle state in declaration order.
func States() []State {
	out := make([]State, stateCount)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	out := make([]Operation, operationCount)
	for i := range out {
		out[i] = Operation(i)
	}
	return out
}
