// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestDispatchAttributes(t *testing.T) {
	m := attrMap(DispatchAttributes("s-1", "start", 7))
	if got := m[StreamIDKey].AsString(); got != "s-1" {
		t.Errorf("stream id = %q, want s-1", got)
	}
	if got := m[OperationKey].AsString(); got != "start" {
		t.Errorf("op = %q, want start", got)
	}
	if got := m[SeqKey].AsInt64(); got != 7 {
		t.Errorf("seq = %d, want 7", got)
	}
}

func TestDispatchAttributes_OmitsEmptyStreamID(t *testing.T) {
	m := attrMap(DispatchAttributes("", "stop", 1))
	if _, ok := m[StreamIDKey]; ok {
		t.Error("expected no stream id attribute for empty id")
	}
}

func TestDrainAttributes(t *testing.T) {
	m := attrMap(DrainAttributes("drop", 128, 3))
	if got := m[FlushModeKey].AsString(); got != "drop" {
		t.Errorf("flush mode = %q, want drop", got)
	}
	if got := m[BytesKey].AsInt64(); got != 128 {
		t.Errorf("bytes = %d, want 128", got)
	}
	if got := m[QueueLengthKey].AsInt64(); got != 3 {
		t.Errorf("queue len = %d, want 3", got)
	}
}
