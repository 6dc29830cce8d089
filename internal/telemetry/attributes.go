// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for archive spans.
const (
	StreamIDKey    = "archive.stream_id"
	OperationKey   = "archive.op"
	SeqKey         = "archive.seq"
	StateKey       = "archive.state"
	FlushModeKey   = "archive.flush_mode"
	BytesKey       = "archive.bytes_written"
	QueueLengthKey = "archive.queue_len"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// DispatchAttributes describes one dispatched stream operation.
func DispatchAttributes(streamID, op string, seq uint64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if streamID != "" {
		attrs = append(attrs, attribute.String(StreamIDKey, streamID))
	}
	attrs = append(attrs,
		attribute.String(OperationKey, op),
		attribute.Int64(SeqKey, int64(seq)),
	)
	return attrs
}

// DrainAttributes describes the outcome of one queue drain.
func DrainAttributes(mode string, bytesWritten uint64, remaining int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(FlushModeKey, mode),
		attribute.Int64(BytesKey, int64(bytesWritten)),
		attribute.Int(QueueLengthKey, remaining),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
