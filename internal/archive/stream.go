// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/bus"
	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/metrics"
	"github.com/ManuGH/xg2g-archive/internal/telemetry"
	"github.com/ManuGH/xg2g-archive/internal/workqueue"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Destination is the byte sink an archive is written to. It keeps its own
// write cursor; the stream never seeks. Close is called once, by Finalize.
type Destination interface {
	io.Writer
	Close() error
}

// aborter is implemented by destinations that can discard an unfinished archive.
type aborter interface {
	Abort() error
}

// StreamConfig configures a Stream.
type StreamConfig struct {
	ID          string       // defaults to a random UUID
	Destination Destination  // required
	Bus         bus.Bus      // defaults to an in-memory bus
	Topic       string       // defaults to TopicFor(ID)
	Framing     bool         // prefix each sample with a RecordHeader
	Tracer      trace.Tracer // defaults to the global tracer
	Meter       metric.Meter // defaults to the global meter

	// PublishTimeout bounds the delivery of one event; defaults to
	// DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// DefaultPublishTimeout is the publish timeout when none is configured.
const DefaultPublishTimeout = time.Second

// TopicFor returns the default event topic of a stream.
func TopicFor(streamID string) string {
	return "archive.stream." + streamID
}

// Stats is a point-in-time view of a stream.
type Stats struct {
	State           State
	Queued          int
	BytesWritten    uint64
	SamplesWritten  uint64
	SamplesDropped  uint64
	SamplesFailed   uint64
	MarkersSignaled uint64
	StartOffset     time.Duration
	Err             error
}

// Stream is the archive state machine. All exported methods are safe for
// concurrent use and, except Shutdown, never block on I/O.
type Stream struct {
	id      string
	topic   string
	dest    Destination
	bus     bus.Bus
	framing bool
	work    *workqueue.Queue

	publishTimeout time.Duration
	tracer  trace.Tracer
	logger  zerolog.Logger

	dispatched metric.Int64Counter

	// sink is a non-owning back-reference; nil for a standalone stream.
	sink *Sink

	mu          sync.Mutex
	state       State
	shutdown    bool
	mediaType   *MediaType
	startOffset time.Duration
	epoch       uint64
	seq         uint64
	queue       entryQueue
	finalize    *FinalizeResult
	destClosed  bool
	writeErr    error

	bytesWritten    uint64
	samplesWritten  uint64
	samplesDropped  uint64
	samplesFailed   uint64
	markersSignaled uint64
}

// NewStream creates a stream in StateTypeNotSet and starts its work queue.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Destination == nil {
		return nil, ErrMissingDestination
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	b := cfg.Bus
	if b == nil {
		b = bus.NewMemoryBus()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = TopicFor(id)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("archive")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = telemetry.Meter("archive")
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	dispatched, err := meter.Int64Counter("xg2g.archive.dispatched",
		metric.WithDescription("Stream operations dispatched"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return nil, fmt.Errorf("archive: dispatch counter: %w", err)
	}

	return &Stream{
		id:      id,
		topic:   topic,
		dest:    cfg.Destination,
		bus:     b,
		framing: cfg.Framing,
		work:    workqueue.New("archive-" + id),
		tracer:  tracer,
		logger:  log.WithComponent("archive").With().Str(log.FieldStreamID, id).Logger(),
		state:   StateTypeNotSet,

		publishTimeout: publishTimeout,
		dispatched:     dispatched,
	}, nil
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// Topic returns the bus topic completions are published on.
func (s *Stream) Topic() string { return s.topic }

// Subscribe attaches a subscriber to the stream's event topic.
func (s *Stream) Subscribe(ctx context.Context) (bus.Subscriber, error) {
	return s.bus.Subscribe(ctx, s.topic)
}

// Sink returns the owning sink, nil for a standalone stream.
func (s *Stream) Sink() (*Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, ErrShutdown
	}
	return s.sink, nil
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns counters and state.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:           s.state,
		Queued:          s.queue.Len(),
		BytesWritten:    s.bytesWritten,
		SamplesWritten:  s.samplesWritten,
		SamplesDropped:  s.samplesDropped,
		SamplesFailed:   s.samplesFailed,
		MarkersSignaled: s.markersSignaled,
		StartOffset:     s.startOffset,
		Err:             s.writeErr,
	}
}

// CurrentMediaType returns a copy of the media type.
func (s *Stream) CurrentMediaType() (*MediaType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, ErrShutdown
	}
	if s.mediaType == nil {
		return nil, ErrTypeNotSet
	}
	return s.mediaType.clone(), nil
}

// MajorType returns the major type of the media type.
func (s *Stream) MajorType() (string, error) {
	mt, err := s.CurrentMediaType()
	if err != nil {
		return "", err
	}
	return mt.Major, nil
}

// SetMediaType sets the stream format. It is only legal once.
func (s *Stream) SetMediaType(mt *MediaType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpSetMediaType); err != nil {
		return err
	}
	if mt == nil || mt.Major == "" {
		s.rejectedLocked(OpSetMediaType, ErrInvalidMediaType)
		return ErrInvalidMediaType
	}
	s.mediaType = mt.clone()
	s.transitionLocked(OpSetMediaType)
	s.logger.Debug().
		Str(log.FieldMajorType, mt.Major).
		Str(log.FieldSubtype, mt.Subtype).
		Msg("media type set")
	return nil
}

// Start starts or resumes writing. offset is the presentation time that
// maps to archive time zero; CurrentPosition keeps the recorded offset.
func (s *Stream) Start(offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpStart); err != nil {
		return err
	}
	if err := s.submitLocked(OpStart); err != nil {
		return err
	}
	if offset != CurrentPosition {
		s.startOffset = offset
	}
	s.transitionLocked(OpStart)
	return nil
}

// Restart resumes a paused stream without touching the start offset.
func (s *Stream) Restart() error {
	return s.control(OpRestart)
}

// Pause holds queued entries until the stream is started again.
func (s *Stream) Pause() error {
	return s.control(OpPause)
}

// Stop flushes every entry submitted before it: samples are dropped and
// markers are signaled with ErrMarkerDropped.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpStop); err != nil {
		return err
	}
	s.epoch++
	if err := s.submitLocked(OpStop); err != nil {
		s.epoch--
		return err
	}
	s.transitionLocked(OpStop)
	return nil
}

// Flush drops every entry submitted before it without changing state.
// Dropped samples complete with ErrSampleDropped and markers with
// ErrMarkerDropped.
func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpFlush); err != nil {
		return err
	}
	s.epoch++
	if err := s.submitLocked(OpFlush); err != nil {
		s.epoch--
		return err
	}
	return nil
}

func (s *Stream) control(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(op); err != nil {
		return err
	}
	if err := s.submitLocked(op); err != nil {
		return err
	}
	s.transitionLocked(op)
	return nil
}

// ProcessSample queues a sample for writing. The stream owns the sample
// from here on.
func (s *Stream) ProcessSample(sample *Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpProcessSample); err != nil {
		return err
	}
	if sample == nil {
		s.rejectedLocked(OpProcessSample, ErrNilSample)
		return ErrNilSample
	}
	if err := s.submitLocked(OpProcessSample); err != nil {
		return err
	}
	s.queue.PushBack(queueEntry{sample: sample, epoch: s.epoch, seq: s.seq})
	return nil
}

// PlaceMarker queues a marker behind every sample submitted so far.
func (s *Stream) PlaceMarker(marker *Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpPlaceMarker); err != nil {
		return err
	}
	if marker == nil {
		s.rejectedLocked(OpPlaceMarker, ErrNilMarker)
		return ErrNilMarker
	}
	if err := s.submitLocked(OpPlaceMarker); err != nil {
		return err
	}
	s.queue.PushBack(queueEntry{marker: marker, epoch: s.epoch, seq: s.seq})
	return nil
}

// Finalize writes every queued sample, closes the destination and resolves
// the returned result. The stream is Finalized from here on.
func (s *Stream) Finalize() (*FinalizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(OpFinalize); err != nil {
		return nil, err
	}
	if err := s.submitLocked(OpFinalize); err != nil {
		return nil, err
	}
	res := newFinalizeResult()
	s.finalize = res
	s.transitionLocked(OpFinalize)
	return res, nil
}

// Shutdown rejects every later operation, waits until every accepted
// operation (an in-flight Finalize included) has run, resolves leftover
// markers with ErrShutdown, aborts an unfinalized destination and stops the
// work queue. A second call returns ErrShutdown.
func (s *Stream) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.shutdown = true
	state := s.state
	s.mu.Unlock()

	s.logger.Info().
		Str(log.FieldEvent, "archive.shutdown").
		Str("state", state.String()).
		Msg("stream shutting down")

	released := make(chan error, 1)
	if err := s.work.Schedule(func(ctx context.Context) { released <- s.release(ctx) }); err != nil {
		return fmt.Errorf("archive: shutdown stream %s: %w", s.id, err)
	}

	select {
	case err := <-released:
		if cerr := s.work.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("archive: shutdown stream %s: %w", s.id, ctx.Err())
	}
}

// validateLocked checks shutdown, then the outstanding finalize, then the
// legality table.
func (s *Stream) validateLocked(op Operation) error {
	var err error
	switch {
	case s.shutdown:
		err = ErrShutdown
	case op == OpFinalize && s.finalize != nil:
		err = ErrAlreadyFinalizing
	case !Allowed(s.state, op):
		err = &InvalidStateError{Op: op, State: s.state}
	}
	if err != nil {
		s.rejectedLocked(op, err)
	}
	return err
}

func (s *Stream) rejectedLocked(op Operation, err error) {
	metrics.IncArchiveRejected(op.String(), rejectReason(err))
	s.logger.Debug().
		Err(err).
		Str(log.FieldOperation, op.String()).
		Str("state", s.state.String()).
		Msg("operation rejected")
}

func (s *Stream) transitionLocked(op Operation) {
	to := targetState[op]
	if to < 0 || to == s.state {
		return
	}
	from := s.state
	s.state = to
	s.logger.Debug().
		Str(log.FieldOperation, op.String()).
		Str(log.FieldOldState, from.String()).
		Str(log.FieldNewState, to.String()).
		Msg("state transition")
}

// submitLocked hands the operation to the work queue. Dispatch takes the
// stream mutex, so it cannot observe the queue before the caller releases it.
func (s *Stream) submitLocked(op Operation) error {
	s.seq++
	p := &pendingOperation{op: op, epoch: s.epoch, seq: s.seq}
	if err := s.work.Schedule(func(ctx context.Context) { s.dispatch(ctx, p) }); err != nil {
		s.seq--
		return fmt.Errorf("archive: schedule %s: %w", op, err)
	}
	return nil
}
