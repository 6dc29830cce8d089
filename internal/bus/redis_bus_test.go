// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisBus(t *testing.T) *RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBus(client, "archive:")
}

func TestRedisBusRoundTripsJSON(t *testing.T) {
	b := newTestRedisBus(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "stream-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	type payload struct {
		Type   string `json:"type"`
		Status string `json:"status"`
	}
	require.NoError(t, b.Publish(ctx, "stream-1", payload{Type: "marker", Status: "ok"}))

	select {
	case msg := <-sub.C():
		raw, ok := msg.(json.RawMessage)
		require.True(t, ok, "expected json.RawMessage, got %T", msg)
		var got payload
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, payload{Type: "marker", Status: "ok"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for redis message")
	}
}

func TestRedisBusRejectsUnencodableMessage(t *testing.T) {
	b := newTestRedisBus(t)
	err := b.Publish(context.Background(), "stream-1", make(chan int))
	require.Error(t, err)
	require.Contains(t, err.Error(), "encode message")
}
