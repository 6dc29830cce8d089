// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingSink is returned when an app is created without a sink.
	ErrMissingSink = errors.New("sink is required")

	// ErrMissingInput is returned when an app is created without an input reader.
	ErrMissingInput = errors.New("input is required")

	// ErrMissingCatalog is returned when an app is created without a catalog store.
	ErrMissingCatalog = errors.New("catalog is required")

	// ErrAlreadyRunning is returned by a second Run.
	ErrAlreadyRunning = errors.New("app already running")

	// errInputDone ends the run group after the input was archived.
	errInputDone = errors.New("input exhausted")
)
