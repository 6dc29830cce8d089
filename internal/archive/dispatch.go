// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/metrics"
	"github.com/ManuGH/xg2g-archive/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// dispatch runs on the stream's work queue, one operation at a time, in
// submission order.
func (s *Stream) dispatch(ctx context.Context, p *pendingOperation) {
	started := time.Now()
	ctx = log.ContextWithStreamID(ctx, s.id)
	ctx, span := s.tracer.Start(ctx, "archive.dispatch."+p.op.String(),
		trace.WithAttributes(telemetry.DispatchAttributes(s.id, p.op.String(), p.seq)...))
	defer func() {
		span.End()
		metrics.ObserveArchiveDispatch(p.op.String(), time.Since(started))
		s.dispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("op", p.op.String())))
	}()

	var err error
	switch p.op {
	case OpStart, OpRestart:
		s.publish(ctx, Event{Type: EventStarted, Seq: p.seq})
		// Entries held while paused are written now.
		err = s.processQueue(ctx, WriteSamples, p)
	case OpPause:
		s.publish(ctx, Event{Type: EventPaused, Seq: p.seq})
	case OpStop:
		s.processQueue(ctx, DropSamples, p)
		s.publish(ctx, Event{Type: EventStopped, Seq: p.seq})
	case OpFlush:
		s.processQueue(ctx, DropSamples, p)
	case OpProcessSample, OpPlaceMarker:
		// Each entry completes through its own event once it reaches the
		// head of the queue, which may be in a later drain.
		err = s.processQueue(ctx, WriteSamples, p)
	case OpFinalize:
		err = s.dispatchFinalize(ctx, p)
	default:
		err = fmt.Errorf("archive: no dispatcher for %s", p.op)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, errorType(err))...)
	}
}

// drainableLocked decides whether the head entry e may be consumed by the
// drain of operation p.
func (s *Stream) drainableLocked(e queueEntry, mode FlushState, p *pendingOperation) bool {
	switch {
	case mode == DropSamples:
		// Only what was submitted before this Stop.
		return e.epoch < p.epoch
	case p.op == OpFinalize:
		return true
	default:
		// Held while paused; entries of an older epoch belong to a pending Stop.
		return s.state == StateStarted && e.epoch == s.epoch
	}
}

// processQueue consumes entries from the head of the queue in order.
// Samples are written (WriteSamples) or dropped (DropSamples); markers are
// signaled as they are reached, so a marker is never signaled before the
// samples queued ahead of it. Every consumed entry publishes its own
// completion with the seq of the operation that queued it. It returns the
// first write error seen.
func (s *Stream) processQueue(ctx context.Context, mode FlushState, p *pendingOperation) error {
	var firstErr error
	var written uint64
	for {
		s.mu.Lock()
		e, ok := s.queue.Front()
		if !ok || !s.drainableLocked(e, mode, p) {
			s.mu.Unlock()
			break
		}
		s.queue.PopFront()
		startOffset := s.startOffset
		writeErr := s.writeErr
		s.mu.Unlock()

		if e.isMarker() {
			var status error
			switch {
			case mode == DropSamples:
				status = ErrMarkerDropped
			case writeErr != nil:
				status = writeErr
			}
			s.signalMarker(ctx, e, status)
			continue
		}

		var status error
		switch {
		case mode == DropSamples:
			s.dropSample("flushed")
			status = ErrSampleDropped
		case writeErr != nil:
			// Writes are not retried; everything after a failure fails too.
			s.dropSample("failed")
			status = writeErr
		default:
			n, err := s.writeSample(e.sample, startOffset)
			written += n
			if err != nil {
				werr := &WriteError{Err: err}
				s.recordWriteError(ctx, werr)
				status = werr
			}
		}
		if status != nil && mode == WriteSamples && firstErr == nil {
			firstErr = status
		}
		s.completeSample(ctx, e, status)
	}

	s.mu.Lock()
	remaining := s.queue.Len()
	s.mu.Unlock()
	trace.SpanFromContext(ctx).SetAttributes(telemetry.DrainAttributes(mode.String(), written, remaining)...)
	return firstErr
}

// completeSample reports the outcome of one queued sample.
func (s *Stream) completeSample(ctx context.Context, e queueEntry, status error) {
	s.publish(ctx, Event{Type: EventRequestSample, Seq: e.seq, Status: status})
}

// writeSample hands one sample to the destination in a single Write.
func (s *Stream) writeSample(sample *Sample, startOffset time.Duration) (uint64, error) {
	buf := sample.Data
	if s.framing {
		buf = encodeRecord(sample, startOffset)
	}
	n, err := s.dest.Write(buf)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if n < 0 {
		n = 0
	}

	s.mu.Lock()
	s.bytesWritten += uint64(n)
	if err != nil {
		s.samplesFailed++
	} else {
		s.samplesWritten++
	}
	s.mu.Unlock()

	metrics.AddArchiveBytes(n)
	if err != nil {
		metrics.IncArchiveSample("failed")
		return uint64(n), err
	}
	metrics.IncArchiveSample("written")
	return uint64(n), nil
}

func (s *Stream) dropSample(reason string) {
	s.mu.Lock()
	if reason == "failed" {
		s.samplesFailed++
	} else {
		s.samplesDropped++
	}
	s.mu.Unlock()
	metrics.IncArchiveSample(reason)
}

// recordWriteError keeps the first destination failure. Only the first one
// is reported as EventError.
func (s *Stream) recordWriteError(ctx context.Context, werr *WriteError) {
	s.mu.Lock()
	first := s.writeErr == nil
	if first {
		s.writeErr = werr
	}
	s.mu.Unlock()

	if !first {
		return
	}
	s.logger.Error().
		Err(werr.Err).
		Str(log.FieldEvent, "archive.write_failed").
		Msg("destination write failed")
	s.publish(ctx, Event{Type: EventError, Status: werr})
}

// signalMarker carries the seq of the PlaceMarker that queued the marker.
func (s *Stream) signalMarker(ctx context.Context, e queueEntry, status error) {
	s.mu.Lock()
	s.markersSignaled++
	s.mu.Unlock()

	metrics.IncArchiveMarker(markerStatus(status))
	s.publish(ctx, Event{
		Type:       EventMarker,
		Seq:        e.seq,
		Status:     status,
		MarkerType: e.marker.Type(),
		Value:      e.marker.Context(),
	})
}

func (s *Stream) dispatchFinalize(ctx context.Context, p *pendingOperation) error {
	drainErr := s.processQueue(ctx, WriteSamples, p)

	s.mu.Lock()
	failed := s.writeErr != nil
	s.mu.Unlock()

	// A failed archive is discarded when the destination supports it.
	var closeErr error
	if a, ok := s.dest.(aborter); ok && failed {
		closeErr = a.Abort()
	} else {
		closeErr = s.dest.Close()
	}

	s.mu.Lock()
	s.destClosed = true
	if closeErr != nil && s.writeErr == nil {
		s.writeErr = &WriteError{Err: closeErr}
	}
	status := s.writeErr
	res := s.finalize
	s.finalize = nil
	bytesWritten, samplesWritten, markers := s.bytesWritten, s.samplesWritten, s.markersSignaled
	s.mu.Unlock()

	if res != nil {
		res.complete(status)
	}

	var evt *zerolog.Event
	if status != nil {
		metrics.IncArchiveFinalize("error")
		evt = s.logger.Error().Err(status)
	} else {
		metrics.IncArchiveFinalize("ok")
		evt = s.logger.Info()
	}
	evt.Str(log.FieldEvent, "archive.finalized").
		Uint64(log.FieldBytes, bytesWritten).
		Uint64(log.FieldSamples, samplesWritten).
		Uint64(log.FieldMarkers, markers).
		Msg("stream finalized")

	if status == nil {
		return drainErr
	}
	return status
}

// release runs as the last task on the work queue after Shutdown.
func (s *Stream) release(ctx context.Context) error {
	s.mu.Lock()
	leftover := s.queue.Clear()
	destClosed := s.destClosed
	s.destClosed = true
	s.mu.Unlock()

	for _, e := range leftover {
		if e.isMarker() {
			s.signalMarker(ctx, e, ErrShutdown)
			continue
		}
		s.dropSample("shutdown")
		s.completeSample(ctx, e, ErrShutdown)
	}

	var err error
	if !destClosed {
		if a, ok := s.dest.(aborter); ok {
			err = a.Abort()
		} else {
			err = s.dest.Close()
		}
		if err != nil {
			err = fmt.Errorf("archive: release destination: %w", err)
		}
	}

	s.work.Stop()
	s.logger.Info().
		Str(log.FieldEvent, "archive.released").
		Int("dropped_entries", len(leftover)).
		Msg("stream released")
	return err
}

// publish bounds each delivery by the publish timeout so a subscriber that
// stops reading cannot stall the work queue.
func (s *Stream) publish(ctx context.Context, ev Event) {
	ev.StreamID = s.id
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, s.topic, ev); err != nil {
		s.logger.Warn().
			Err(err).
			Str(log.FieldTopic, s.topic).
			Str(log.FieldEvent, string(ev.Type)).
			Msg("failed to publish stream event")
	}
}

func markerStatus(status error) string {
	switch {
	case status == nil:
		return "delivered"
	case errors.Is(status, ErrMarkerDropped):
		return "dropped"
	case errors.Is(status, ErrShutdown):
		return "shutdown"
	default:
		return "failed"
	}
}

func errorType(err error) string {
	var werr *WriteError
	switch {
	case errors.As(err, &werr):
		return "write"
	case errors.Is(err, ErrShutdown):
		return "shutdown"
	default:
		return "internal"
	}
}
