// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/rs/zerolog"
)

// Clock is the presentation clock shared with the host. The sink only uses
// it to compute start offsets.
type Clock interface {
	// Time returns the current presentation time.
	Time() time.Duration
}

// Sink is the host-facing facade. It owns exactly one Stream and turns
// clock-state notifications into stream lifecycle operations.
type Sink struct {
	stream *Stream
	logger zerolog.Logger

	mu       sync.Mutex
	shutdown bool
	clock    Clock
}

// NewSink creates a sink and its stream.
func NewSink(cfg StreamConfig) (*Sink, error) {
	st, err := NewStream(cfg)
	if err != nil {
		return nil, err
	}
	sk := &Sink{
		stream: st,
		logger: log.WithComponent("archive.sink").With().Str(log.FieldStreamID, st.ID()).Logger(),
	}
	st.sink = sk
	return sk, nil
}

func (sk *Sink) checkShutdown() error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.shutdown {
		return ErrShutdown
	}
	return nil
}

// Characteristics reports a fixed-stream, rateless sink.
func (sk *Sink) Characteristics() (Characteristics, error) {
	if err := sk.checkShutdown(); err != nil {
		return 0, err
	}
	return FixedStreams | Rateless, nil
}

// Stream returns the sink's only stream.
func (sk *Sink) Stream() *Stream {
	return sk.stream
}

// AddStream always fails: the stream set is fixed.
func (sk *Sink) AddStream(string, *MediaType) (*Stream, error) {
	if err := sk.checkShutdown(); err != nil {
		return nil, err
	}
	return nil, ErrStreamsFixed
}

// RemoveStream always fails: the stream set is fixed.
func (sk *Sink) RemoveStream(string) error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	return ErrStreamsFixed
}

// StreamCount is always 1.
func (sk *Sink) StreamCount() (int, error) {
	if err := sk.checkShutdown(); err != nil {
		return 0, err
	}
	return 1, nil
}

func (sk *Sink) StreamByIndex(i int) (*Stream, error) {
	if err := sk.checkShutdown(); err != nil {
		return nil, err
	}
	if i != 0 {
		return nil, ErrInvalidStream
	}
	return sk.stream, nil
}

func (sk *Sink) StreamByID(id string) (*Stream, error) {
	if err := sk.checkShutdown(); err != nil {
		return nil, err
	}
	if id != sk.stream.ID() {
		return nil, ErrInvalidStream
	}
	return sk.stream, nil
}

// SetPresentationClock replaces the clock. nil detaches it.
func (sk *Sink) SetPresentationClock(c Clock) error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.shutdown {
		return ErrShutdown
	}
	sk.clock = c
	return nil
}

func (sk *Sink) PresentationClock() (Clock, error) {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.shutdown {
		return nil, ErrShutdown
	}
	if sk.clock == nil {
		return nil, ErrNoClock
	}
	return sk.clock, nil
}

// OnClockStart starts the stream. A startOffset of CurrentPosition is
// resolved against the presentation clock when one is set, so a restart
// after Stop is re-anchored at the clock's current time.
func (sk *Sink) OnClockStart(systemTime time.Time, startOffset time.Duration) error {
	sk.mu.Lock()
	if sk.shutdown {
		sk.mu.Unlock()
		return ErrShutdown
	}
	clock := sk.clock
	sk.mu.Unlock()

	if startOffset == CurrentPosition && clock != nil {
		startOffset = clock.Time()
	}
	sk.logger.Debug().
		Time("system_time", systemTime).
		Dur("start_offset", startOffset).
		Msg("clock start")
	return sk.stream.Start(startOffset)
}

func (sk *Sink) OnClockStop(systemTime time.Time) error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	sk.logger.Debug().Time("system_time", systemTime).Msg("clock stop")
	return sk.stream.Stop()
}

func (sk *Sink) OnClockPause(systemTime time.Time) error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	sk.logger.Debug().Time("system_time", systemTime).Msg("clock pause")
	return sk.stream.Pause()
}

func (sk *Sink) OnClockRestart(systemTime time.Time) error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	sk.logger.Debug().Time("system_time", systemTime).Msg("clock restart")
	return sk.stream.Restart()
}

// OnClockSetRate is accepted and ignored; the sink is rateless.
func (sk *Sink) OnClockSetRate(systemTime time.Time, rate float64) error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	sk.logger.Debug().Time("system_time", systemTime).Float64("rate", rate).Msg("clock rate change ignored")
	return nil
}

// BeginFinalize starts finalizing the stream.
func (sk *Sink) BeginFinalize() (*FinalizeResult, error) {
	if err := sk.checkShutdown(); err != nil {
		return nil, err
	}
	return sk.stream.Finalize()
}

// Flush drops every queued sample and marker without changing state.
func (sk *Sink) Flush() error {
	if err := sk.checkShutdown(); err != nil {
		return err
	}
	return sk.stream.Flush()
}

// EndFinalize waits for res and returns its final status.
func (sk *Sink) EndFinalize(ctx context.Context, res *FinalizeResult) error {
	if res == nil {
		return ErrNilFinalizeResult
	}
	return res.Wait(ctx)
}

// Shutdown shuts the stream down (waiting for an in-flight Finalize) and
// releases the clock. A second call returns ErrShutdown.
func (sk *Sink) Shutdown(ctx context.Context) error {
	sk.mu.Lock()
	if sk.shutdown {
		sk.mu.Unlock()
		return ErrShutdown
	}
	sk.shutdown = true
	sk.mu.Unlock()

	err := sk.stream.Shutdown(ctx)

	sk.mu.Lock()
	sk.clock = nil
	sk.mu.Unlock()
	return err
}
