// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithStreamID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		streamID string
		want     string
	}{
		{name: "nil context", ctx: nil, streamID: "s-1", want: "s-1"},
		{name: "background context", ctx: context.Background(), streamID: "s-2", want: "s-2"},
		{name: "empty stream ID", ctx: context.Background(), streamID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithStreamID(tt.ctx, tt.streamID)
			if got := StreamIDFromContext(ctx); got != tt.want {
				t.Errorf("StreamIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromContextNil(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" {
		t.Errorf("RequestIDFromContext(nil) = %q, want empty", got)
	}
	if FromContext(nil) == nil {
		t.Fatal("FromContext(nil) returned nil logger")
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithStreamID(ctx, "stream-1")

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry[FieldRequestID])
	}
	if entry[FieldStreamID] != "stream-1" {
		t.Errorf("stream_id = %v, want stream-1", entry[FieldStreamID])
	}
}

func TestConfigureServiceField(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf, Service: "archive-test", Version: "v0.0.0"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("unit")
	l.Info().Msg("configured")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "archive-test" {
		t.Errorf("service = %v, want archive-test", entry["service"])
	}
	if entry[FieldComponent] != "unit" {
		t.Errorf("component = %v, want unit", entry[FieldComponent])
	}
}
