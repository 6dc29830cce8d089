// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/bus"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// timeline records destination writes and published events in the order
// they happen, so tests can assert marker-after-sample ordering.
type timeline struct {
	mu      sync.Mutex
	entries []string
	events  []Event
}

func (tl *timeline) add(entry string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.entries = append(tl.entries, entry)
}

func (tl *timeline) addEvent(ev Event) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	entry := "event:" + string(ev.Type)
	if ev.Type == EventMarker {
		entry = fmt.Sprintf("marker:%v", ev.Value)
	}
	tl.entries = append(tl.entries, entry)
	tl.events = append(tl.events, ev)
}

func (tl *timeline) snapshot() []string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]string(nil), tl.entries...)
}

func (tl *timeline) eventsOf(typ EventType) []Event {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	var out []Event
	for _, ev := range tl.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// statusBySeq maps the seq of every event of typ to its status.
func (tl *timeline) statusBySeq(typ EventType) map[uint64]error {
	out := map[uint64]error{}
	for _, ev := range tl.eventsOf(typ) {
		out[ev.Seq] = ev.Status
	}
	return out
}

// recordingBus publishes synchronously onto a timeline.
type recordingBus struct {
	tl *timeline
}

func (b *recordingBus) Publish(_ context.Context, _ string, msg bus.Message) error {
	ev, ok := msg.(Event)
	if !ok {
		return fmt.Errorf("unexpected message %T", msg)
	}
	b.tl.addEvent(ev)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (bus.Subscriber, error) {
	return nil, errors.New("recording bus: subscribe not supported")
}

// fakeDestination keeps everything written to it. failAt makes the n-th
// write (1-based) and every later one fail.
type fakeDestination struct {
	tl *timeline

	mu       sync.Mutex
	buf      bytes.Buffer
	writes   int
	failAt   int
	closeErr error
	closed   int
}

func (d *fakeDestination) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	if d.failAt > 0 && d.writes >= d.failAt {
		d.tl.add("fail:" + string(p))
		return 0, errDiskFull
	}
	d.buf.Write(p)
	d.tl.add("write:" + string(p))
	return len(p), nil
}

func (d *fakeDestination) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	d.tl.add("close")
	return d.closeErr
}

func (d *fakeDestination) bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buf.Bytes()...)
}

func (d *fakeDestination) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// abortableDestination also supports discarding the archive.
type abortableDestination struct {
	*fakeDestination
	aborted int
}

func (d *abortableDestination) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted++
	d.tl.add("abort")
	return nil
}

func (d *abortableDestination) abortCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aborted
}

type testStream struct {
	*Stream
	tl   *timeline
	dest *fakeDestination
}

func newTestStream(t *testing.T) *testStream {
	t.Helper()
	tl := &timeline{}
	return newTestStreamWith(t, tl, &fakeDestination{tl: tl}, false)
}

func newTestStreamWith(t *testing.T, tl *timeline, dest Destination, framing bool) *testStream {
	t.Helper()
	s, err := NewStream(StreamConfig{
		ID:          "test",
		Destination: dest,
		Bus:         &recordingBus{tl: tl},
		Framing:     framing,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, ErrShutdown) {
			t.Errorf("shutdown: %v", err)
		}
	})

	ts := &testStream{Stream: s, tl: tl}
	switch d := dest.(type) {
	case *fakeDestination:
		ts.dest = d
	case *abortableDestination:
		ts.dest = d.fakeDestination
	}
	return ts
}

// started brings the stream to StateStarted with a zero start offset.
func (ts *testStream) started(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.SetMediaType(&MediaType{Major: "video", Subtype: "h264"}))
	require.NoError(t, ts.Start(0))
}

// settle waits until every operation submitted so far has been dispatched.
func (ts *testStream) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.work.Barrier(ctx))
}

// hold blocks the dispatcher until the returned func is called.
func (ts *testStream) hold(t *testing.T) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	entered := make(chan struct{})
	require.NoError(t, ts.work.Schedule(func(context.Context) {
		close(entered)
		<-gate
	}))
	<-entered
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}

func sampleOf(name string) *Sample {
	return &Sample{Data: []byte(name)}
}
