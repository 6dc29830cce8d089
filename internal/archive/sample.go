// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import "time"

// Sample is one timestamped media payload. The archive takes ownership of
// Data on ProcessSample; callers must not modify it afterwards.
type Sample struct {
	Time     time.Duration // presentation time
	Duration time.Duration
	Data     []byte
	Keyframe bool
}

// Len returns the payload size in bytes.
func (s *Sample) Len() int {
	return len(s.Data)
}
