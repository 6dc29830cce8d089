// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHolder(t *testing.T, body string) (*Holder, string) {
	t.Helper()
	path := writeConfig(t, "config.yaml", body)
	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestHolderReloadAppliesValidConfig(t *testing.T) {
	h, path := newTestHolder(t, "logLevel: info\n")
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nfeeder:\n  ratePerSecond: 50\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, "debug", h.Get().LogLevel)
	select {
	case got := <-ch:
		assert.InDelta(t, 50.0, got.Feeder.RatePerSecond, 1e-9)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolderReloadKeepsPreviousOnError(t *testing.T) {
	h, path := newTestHolder(t, "logLevel: warn\n")
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: shouting\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))

	assert.Equal(t, "warn", h.Get().LogLevel)
	assert.Empty(t, ch)
}

func TestHolderFullListenerDoesNotBlock(t *testing.T) {
	h, _ := newTestHolder(t, "logLevel: info\n")
	full := make(chan AppConfig)
	h.RegisterListener(full)

	done := make(chan error, 1)
	go func() { done <- h.Reload(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on listener")
	}
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	h, path := newTestHolder(t, "logLevel: info\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logLevel: error\n"), 0o600))
	assert.Eventually(t, func() bool {
		return h.Get().LogLevel == "error"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHolderWatcherWithoutFile(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	h := NewHolder(cfg, NewLoader("", "test"))
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
