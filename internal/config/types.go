// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective archiver configuration.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Archive   ArchiveConfig   `yaml:"archive"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Bus       BusConfig       `yaml:"bus"`
	Control   ControlConfig   `yaml:"control"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Feeder    FeederConfig    `yaml:"feeder"`
}

// ArchiveConfig configures the stream and its destination file.
type ArchiveConfig struct {
	StreamID        string        `yaml:"streamID"`
	Root            string        `yaml:"root"`
	Name            string        `yaml:"name"`
	Framing         bool          `yaml:"framing"`
	MajorType       string        `yaml:"majorType"`
	Subtype         string        `yaml:"subtype"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	PublishTimeout  time.Duration `yaml:"publishTimeout"`
}

// CatalogConfig selects the catalog backend ("sqlite" or "memory").
type CatalogConfig struct {
	Backend string `yaml:"backend"`
}

// BusConfig selects where stream events are published.
type BusConfig struct {
	Backend     string `yaml:"backend"` // memory | redis
	Buffer      int    `yaml:"buffer"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix"`
}

// ControlConfig configures the HTTP control surface.
type ControlConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listenAddr"`
	// RateLimit is the per-client request budget per minute.
	RateLimit int `yaml:"rateLimit"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc | http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// FeederConfig configures how input bytes are cut into samples.
type FeederConfig struct {
	ChunkSize      int           `yaml:"chunkSize"`
	SampleDuration time.Duration `yaml:"sampleDuration"`
	// RatePerSecond paces sample submission; 0 feeds as fast as possible.
	RatePerSecond float64 `yaml:"ratePerSecond"`
	// MarkerEvery places a tick marker after every n samples; 0 disables.
	MarkerEvery int `yaml:"markerEvery"`
}
