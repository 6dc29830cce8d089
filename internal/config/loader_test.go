// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join("./data", "archives"), cfg.Archive.Root)
	assert.True(t, cfg.Archive.Framing)
	assert.Equal(t, "sqlite", cfg.Catalog.Backend)
	assert.Equal(t, "memory", cfg.Bus.Backend)
	assert.Equal(t, 30*time.Second, cfg.Archive.ShutdownTimeout)
	assert.Equal(t, time.Second, cfg.Archive.PublishTimeout)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
dataDir: /srv/xg2g
logLevel: debug
archive:
  name: tonight.xga
  framing: false
  majorType: audio
  shutdownTimeout: 5s
bus:
  buffer: 8
feeder:
  markerEvery: 25
`)
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/xg2g/archives", cfg.Archive.Root)
	assert.Equal(t, "tonight.xga", cfg.Archive.Name)
	assert.False(t, cfg.Archive.Framing)
	assert.Equal(t, "audio", cfg.Archive.MajorType)
	assert.Equal(t, 5*time.Second, cfg.Archive.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Bus.Buffer)
	assert.Equal(t, 25, cfg.Feeder.MarkerEvery)
	// untouched keys keep their defaults
	assert.Equal(t, "archive", cfg.Archive.StreamID)
	assert.Equal(t, "sqlite", cfg.Catalog.Backend)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yml", "logLevel: debug\nbus:\n  buffer: 8\n")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "warn")
	t.Setenv(EnvPrefix+"BUS_BUFFER", "16")
	t.Setenv(EnvPrefix+"FRAMING", "no")
	t.Setenv(EnvPrefix+"FEED_RATE", "12.5")
	t.Setenv(EnvPrefix+"SHUTDOWN_TIMEOUT", "2s")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Bus.Buffer)
	assert.False(t, cfg.Archive.Framing)
	assert.InDelta(t, 12.5, cfg.Feeder.RatePerSecond, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Archive.ShutdownTimeout)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", "archive:\n  nmae: typo.xga\n")
	_, err := NewLoader(path, "dev").Load()
	require.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := writeConfig(t, "config.json", "{}")
	_, err := NewLoader(path, "dev").Load()
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Archive.Name, cfg.Archive.Name)
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logLevel: debug\n---\nlogLevel: info\n")
	_, err := NewLoader(path, "dev").Load()
	require.ErrorContains(t, err, "multiple documents")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), "dev").Load()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Root = "/tmp/archives"
	cfg.LogLevel = "loud"
	cfg.Catalog.Backend = "postgres"
	cfg.Bus.Backend = "redis"
	cfg.Bus.RedisAddr = "no-port"
	cfg.Feeder.ChunkSize = 0
	cfg.Telemetry.SamplingRate = 2
	cfg.Archive.PublishTimeout = 0

	err := Validate(cfg)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"Archive.PublishTimeout",
		"LogLevel",
		"Catalog.Backend",
		"Bus.RedisAddr",
		"Feeder.ChunkSize",
		"Telemetry.SamplingRate",
	}, fields)
}

func TestValidateControlOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Root = "/tmp/archives"
	cfg.Control.ListenAddr = "bogus"
	require.Error(t, Validate(cfg))

	cfg.Control.Enabled = false
	require.NoError(t, Validate(cfg))
}
