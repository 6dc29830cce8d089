// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns a meter from the global provider at call time, so a
// provider installed later (tests, NewProvider) is picked up by new streams.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
