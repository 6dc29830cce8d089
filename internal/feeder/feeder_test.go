// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package feeder

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/destination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newStream(t *testing.T) (*archive.Stream, *destination.Buffer) {
	t.Helper()
	buf := destination.NewBuffer()
	st, err := archive.NewStream(archive.StreamConfig{ID: "feed", Destination: buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Shutdown(context.Background()) })
	require.NoError(t, st.SetMediaType(&archive.MediaType{Major: "video"}))
	return st, buf
}

func finalize(t *testing.T, st *archive.Stream) {
	t.Helper()
	res, err := st.Finalize()
	require.NoError(t, err)
	require.NoError(t, res.Wait(context.Background()))
}

func TestNewRejectsZeroChunk(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
}

func TestRunChunksInputAndPlacesTicks(t *testing.T) {
	st, buf := newStream(t)
	require.NoError(t, st.Start(0))

	f, err := New(st, Config{ChunkSize: 4, SampleDuration: 40 * time.Millisecond, MarkerEvery: 2})
	require.NoError(t, err)

	res, err := f.Run(context.Background(), strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, Result{Samples: 3, Markers: 1, Bytes: 10}, res)

	finalize(t, st)
	assert.Equal(t, []byte("0123456789"), buf.Bytes())
	stats := st.Stats()
	assert.EqualValues(t, 3, stats.SamplesWritten)
	assert.EqualValues(t, 1, stats.MarkersSignaled)
}

func TestRunWaitsForStart(t *testing.T) {
	st, buf := newStream(t)
	f, err := New(st, Config{ChunkSize: 2, RetryInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.Run(context.Background(), strings.NewReader("abcd"))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("feeder finished before the stream started: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, st.Start(0))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("feeder did not resume")
	}

	finalize(t, st)
	assert.Equal(t, []byte("abcd"), buf.Bytes())
}

func TestRunStopsOnFinalizedStream(t *testing.T) {
	st, _ := newStream(t)
	finalize(t, st)

	f, err := New(st, Config{ChunkSize: 2})
	require.NoError(t, err)
	res, err := f.Run(context.Background(), strings.NewReader("abcd"))
	require.ErrorIs(t, err, archive.ErrInvalidState)
	assert.Zero(t, res.Samples)
}

func TestRunHonorsContextWhileWaiting(t *testing.T) {
	st, _ := newStream(t)
	f, err := New(st, Config{ChunkSize: 2, RetryInterval: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Run(ctx, strings.NewReader("abcd"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunReportsReadError(t *testing.T) {
	st, _ := newStream(t)
	require.NoError(t, st.Start(0))
	boom := errors.New("device gone")

	f, err := New(st, Config{ChunkSize: 2})
	require.NoError(t, err)
	_, err = f.Run(context.Background(), iotest.ErrReader(boom))
	require.ErrorIs(t, err, boom)
}

func TestRunEmptyInput(t *testing.T) {
	st, _ := newStream(t)
	f, err := New(st, Config{ChunkSize: 8})
	require.NoError(t, err)
	res, err := f.Run(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestSetRate(t *testing.T) {
	f, err := New(nil, Config{ChunkSize: 1})
	require.NoError(t, err)
	assert.Equal(t, rate.Inf, f.limiter.Limit())

	f.SetRate(25)
	assert.Equal(t, rate.Limit(25), f.limiter.Limit())

	f.SetRate(0)
	assert.Equal(t, rate.Inf, f.limiter.Limit())
}
