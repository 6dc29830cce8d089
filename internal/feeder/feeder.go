// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package feeder cuts a byte stream into timestamped samples and submits
// them to an archive stream, optionally paced and interleaved with tick
// markers.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const defaultRetryInterval = 50 * time.Millisecond

// Target is the part of an archive stream the feeder drives.
type Target interface {
	State() archive.State
	ProcessSample(*archive.Sample) error
	PlaceMarker(*archive.Marker) error
}

// Config controls chunking and pacing.
type Config struct {
	ChunkSize      int
	SampleDuration time.Duration
	// RatePerSecond limits samples per second; 0 is unlimited.
	RatePerSecond float64
	// MarkerEvery places a tick marker after every n samples; 0 disables.
	MarkerEvery int
	// RetryInterval is how often a paused or stopped stream is retried.
	RetryInterval time.Duration
}

// Result summarizes one Run.
type Result struct {
	Samples int
	Markers int
	Bytes   int64
}

// Feeder submits input to a Target.
type Feeder struct {
	cfg     Config
	target  Target
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a feeder. A non-positive chunk size is rejected.
func New(target Target, cfg Config) (*Feeder, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("feeder: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	return &Feeder{
		cfg:     cfg,
		target:  target,
		limiter: rate.NewLimiter(limitFor(cfg.RatePerSecond), 1),
		logger:  xglog.WithComponent("feeder"),
	}, nil
}

func limitFor(perSecond float64) rate.Limit {
	if perSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// SetRate changes the pacing of a running feeder.
func (f *Feeder) SetRate(perSecond float64) {
	f.limiter.SetLimit(limitFor(perSecond))
	f.logger.Info().Float64("rate", perSecond).Msg("feeder rate updated")
}

// Run reads r until EOF. It returns early when ctx ends, the stream is
// finalized or shut down, or the read fails. The returned Result is valid
// in every case.
func (f *Feeder) Run(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	buf := make([]byte, f.cfg.ChunkSize)
	var pts time.Duration

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			sample := &archive.Sample{
				Time:     pts,
				Duration: f.cfg.SampleDuration,
				Data:     data,
				Keyframe: res.Samples == 0,
			}
			if err := f.limiter.Wait(ctx); err != nil {
				return res, err
			}
			if err := f.submit(ctx, func() error { return f.target.ProcessSample(sample) }); err != nil {
				return res, err
			}
			res.Samples++
			res.Bytes += int64(n)
			pts += f.cfg.SampleDuration

			if f.cfg.MarkerEvery > 0 && res.Samples%f.cfg.MarkerEvery == 0 {
				marker := archive.NewMarker(archive.MarkerTick, pts, fmt.Sprintf("tick-%d", res.Samples))
				if err := f.submit(ctx, func() error { return f.target.PlaceMarker(marker) }); err != nil {
					return res, err
				}
				res.Markers++
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			f.logger.Info().
				Int("samples", res.Samples).
				Int("markers", res.Markers).
				Int64("bytes", res.Bytes).
				Msg("input exhausted")
			return res, nil
		default:
			return res, fmt.Errorf("feeder: read input: %w", readErr)
		}
	}
}

// submit retries while the stream is not started but can still be.
func (f *Feeder) submit(ctx context.Context, op func() error) error {
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, archive.ErrInvalidState) || f.target.State().IsTerminal() {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.RetryInterval):
		}
	}
}
