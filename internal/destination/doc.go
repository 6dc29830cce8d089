// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package destination provides byte sinks for archive streams: an atomic
// file destination and an in-memory buffer.
package destination

import "errors"

// ErrClosed is returned when writing to a destination after Close or Abort.
var ErrClosed = errors.New("destination closed")
