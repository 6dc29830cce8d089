// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "XG2G_ARCHIVE_"

// Loader builds an AppConfig from defaults, an optional file and the environment.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, empty when none is used.
func (l *Loader) Path() string {
	return l.configPath
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "./data",
		LogLevel: "info",
		Archive: ArchiveConfig{
			StreamID:        "archive",
			Name:            "archive.xga",
			Framing:         true,
			MajorType:       "video",
			ShutdownTimeout: 30 * time.Second,
			PublishTimeout:  time.Second,
		},
		Catalog: CatalogConfig{Backend: "sqlite"},
		Bus: BusConfig{
			Backend:     "memory",
			Buffer:      64,
			RedisPrefix: "xg2g:",
		},
		Control: ControlConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8089",
			RateLimit:  120,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Feeder: FeederConfig{
			ChunkSize:      188 * 7,
			SampleDuration: 40 * time.Millisecond,
		},
	}
}

// Load returns the validated configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}
	l.mergeEnvConfig(&cfg)

	if cfg.Archive.Root == "" {
		cfg.Archive.Root = filepath.Join(cfg.DataDir, "archives")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing. Keys absent
// from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)

	cfg.Archive.StreamID = ParseString(EnvPrefix+"STREAM_ID", cfg.Archive.StreamID)
	cfg.Archive.Root = ParseString(EnvPrefix+"ROOT", cfg.Archive.Root)
	cfg.Archive.Name = ParseString(EnvPrefix+"NAME", cfg.Archive.Name)
	cfg.Archive.Framing = ParseBool(EnvPrefix+"FRAMING", cfg.Archive.Framing)
	cfg.Archive.MajorType = ParseString(EnvPrefix+"MAJOR_TYPE", cfg.Archive.MajorType)
	cfg.Archive.Subtype = ParseString(EnvPrefix+"SUBTYPE", cfg.Archive.Subtype)
	cfg.Archive.ShutdownTimeout = ParseDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Archive.ShutdownTimeout)
	cfg.Archive.PublishTimeout = ParseDuration(EnvPrefix+"PUBLISH_TIMEOUT", cfg.Archive.PublishTimeout)

	cfg.Catalog.Backend = ParseString(EnvPrefix+"CATALOG_BACKEND", cfg.Catalog.Backend)

	cfg.Bus.Backend = ParseString(EnvPrefix+"BUS_BACKEND", cfg.Bus.Backend)
	cfg.Bus.Buffer = ParseInt(EnvPrefix+"BUS_BUFFER", cfg.Bus.Buffer)
	cfg.Bus.RedisAddr = ParseString(EnvPrefix+"REDIS_ADDR", cfg.Bus.RedisAddr)
	cfg.Bus.RedisPrefix = ParseString(EnvPrefix+"REDIS_PREFIX", cfg.Bus.RedisPrefix)

	cfg.Control.Enabled = ParseBool(EnvPrefix+"CONTROL_ENABLED", cfg.Control.Enabled)
	cfg.Control.ListenAddr = ParseString(EnvPrefix+"LISTEN", cfg.Control.ListenAddr)
	cfg.Control.RateLimit = ParseInt(EnvPrefix+"RATE_LIMIT", cfg.Control.RateLimit)

	cfg.Telemetry.Enabled = ParseBool(EnvPrefix+"OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(EnvPrefix+"OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvPrefix+"OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvPrefix+"OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvPrefix+"OTEL_ENVIRONMENT", cfg.Telemetry.Environment)

	cfg.Feeder.ChunkSize = ParseInt(EnvPrefix+"CHUNK_SIZE", cfg.Feeder.ChunkSize)
	cfg.Feeder.SampleDuration = ParseDuration(EnvPrefix+"SAMPLE_DURATION", cfg.Feeder.SampleDuration)
	cfg.Feeder.RatePerSecond = ParseFloat(EnvPrefix+"FEED_RATE", cfg.Feeder.RatePerSecond)
	cfg.Feeder.MarkerEvery = ParseInt(EnvPrefix+"MARKER_EVERY", cfg.Feeder.MarkerEvery)
}
