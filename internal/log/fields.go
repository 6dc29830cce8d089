// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldStreamID  = "stream_id"
	FieldRequestID = "request_id"
	FieldArchiveID = "archive_id"

	// Process / dispatch fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOperation = "op"
	FieldTopic     = "topic"

	// Media fields
	FieldMajorType = "major_type"
	FieldSubtype   = "subtype"
	FieldBytes     = "bytes"
	FieldSamples   = "samples"
	FieldMarkers   = "markers"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
