// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FieldError is one failed check.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed check of one Validate call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) oneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, "unsupported value %q (allowed: %s)", value, strings.Join(allowed, ", "))
}

func (v *validator) positive(field string, value int) {
	if value <= 0 {
		v.add(field, "must be positive, got %d", value)
	}
}

func (v *validator) hostPort(field, value string) {
	if _, _, err := net.SplitHostPort(value); err != nil {
		v.add(field, "invalid host:port %q: %v", value, err)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.errs}
}

// Validate checks the whole configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := &validator{}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		v.add("LogLevel", "unknown log level %q", cfg.LogLevel)
	}

	if strings.TrimSpace(cfg.Archive.Name) == "" {
		v.add("Archive.Name", "cannot be empty")
	}
	if strings.TrimSpace(cfg.Archive.Root) == "" {
		v.add("Archive.Root", "cannot be empty")
	}
	if strings.TrimSpace(cfg.Archive.MajorType) == "" {
		v.add("Archive.MajorType", "cannot be empty")
	}
	if cfg.Archive.ShutdownTimeout <= 0 {
		v.add("Archive.ShutdownTimeout", "must be positive, got %s", cfg.Archive.ShutdownTimeout)
	}
	if cfg.Archive.PublishTimeout <= 0 {
		v.add("Archive.PublishTimeout", "must be positive, got %s", cfg.Archive.PublishTimeout)
	}

	v.oneOf("Catalog.Backend", cfg.Catalog.Backend, "sqlite", "memory")

	v.oneOf("Bus.Backend", cfg.Bus.Backend, "memory", "redis")
	v.positive("Bus.Buffer", cfg.Bus.Buffer)
	if cfg.Bus.Backend == "redis" {
		v.hostPort("Bus.RedisAddr", cfg.Bus.RedisAddr)
	}

	if cfg.Control.Enabled {
		v.hostPort("Control.ListenAddr", cfg.Control.ListenAddr)
		v.positive("Control.RateLimit", cfg.Control.RateLimit)
	}

	if cfg.Telemetry.Enabled {
		v.oneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, "grpc", "http")
		if cfg.Telemetry.Endpoint == "" {
			v.add("Telemetry.Endpoint", "cannot be empty when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("Telemetry.SamplingRate", "must be between 0 and 1, got %g", cfg.Telemetry.SamplingRate)
	}

	v.positive("Feeder.ChunkSize", cfg.Feeder.ChunkSize)
	if cfg.Feeder.SampleDuration < 0 {
		v.add("Feeder.SampleDuration", "cannot be negative")
	}
	if cfg.Feeder.RatePerSecond < 0 {
		v.add("Feeder.RatePerSecond", "cannot be negative")
	}
	if cfg.Feeder.MarkerEvery < 0 {
		v.add("Feeder.MarkerEvery", "cannot be negative")
	}

	return v.err()
}
