// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/destination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sink    *archive.Sink
	dest    *destination.Buffer
	catalog *catalog.MemoryStore
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dest := destination.NewBuffer()
	sk, err := archive.NewSink(archive.StreamConfig{ID: "ctl", Destination: dest})
	require.NoError(t, err)
	require.NoError(t, sk.Stream().SetMediaType(&archive.MediaType{Major: "video", Subtype: "mpegts"}))

	store := catalog.NewMemoryStore()
	s, err := New(Deps{Sink: sk, Catalog: store, Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = sk.Shutdown(context.Background())
	})
	return &fixture{sink: sk, dest: dest, catalog: store, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNewRequiresSink(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestTransportControls(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/stream/start?offset=2s", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, archive.StateStarted, f.sink.Stream().State())

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/stream/pause", "").StatusCode)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/stream/restart", "").StatusCode)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/stream/stop", "").StatusCode)

	status := decode[StreamStatus](t, f.do(t, http.MethodGet, "/api/v1/stream", ""))
	assert.Equal(t, "ctl", status.ID)
	assert.Equal(t, "STOPPED", status.State)
	assert.Equal(t, "2s", status.StartOffset)
	require.NotNil(t, status.MediaType)
	assert.Equal(t, "mpegts", status.MediaType.Subtype)
}

func TestIllegalTransitionIsConflict(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/stream/pause", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "archive/invalid_state", body["type"])
	assert.Equal(t, "READY", body["state"])
	assert.Equal(t, "pause", body["op"])
	assert.NotEmpty(t, body["requestId"])
}

func TestFlushKeepsState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sink.Stream().Start(0))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/stream/flush", "").StatusCode)
	assert.Equal(t, archive.StateStarted, f.sink.Stream().State())

	res, err := f.sink.BeginFinalize()
	require.NoError(t, err)
	require.NoError(t, f.sink.EndFinalize(context.Background(), res))

	resp := f.do(t, http.MethodPost, "/api/v1/stream/flush", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "flush", body["op"])
	assert.Equal(t, "FINALIZED", body["state"])
}

func TestStartRejectsBadOffset(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/stream/start?offset=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarkerValidation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sink.Stream().Start(0))

	assert.Equal(t, http.StatusAccepted,
		f.do(t, http.MethodPost, "/api/v1/stream/marker", `{"type":"tick","context":"chapter-1"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/stream/marker", `{"type":"chapter"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/stream/marker", `{"kind":"tick"}`).StatusCode)
}

func TestFinalizeWait(t *testing.T) {
	f := newFixture(t)
	st := f.sink.Stream()
	require.NoError(t, st.Start(0))
	require.NoError(t, st.ProcessSample(&archive.Sample{Data: []byte("payload")}))

	resp := f.do(t, http.MethodPost, "/api/v1/stream/finalize?wait=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, finalizeResponse{Finalized: true}, decode[finalizeResponse](t, resp))
	assert.Equal(t, []byte("payload"), f.dest.Bytes())

	resp = f.do(t, http.MethodPost, "/api/v1/stream/finalize", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFinalizeAsync(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/stream/finalize", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/stream/finalize", "")
	body := decode[map[string]any](t, resp)
	assert.Contains(t, []any{"archive/finalizing", "archive/invalid_state"}, body["type"])
}

func TestShutdownIsUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sink.Shutdown(context.Background()))
	resp := f.do(t, http.MethodPost, "/api/v1/stream/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, f.catalog.Put(ctx, &catalog.Entry{ArchiveID: "a1", StreamID: "ctl", Status: catalog.StatusOK, FinalizedAt: now.Add(-time.Hour)}))
	require.NoError(t, f.catalog.Put(ctx, &catalog.Entry{ArchiveID: "a2", StreamID: "ctl", Status: catalog.StatusFailed, FinalizedAt: now}))

	list := decode[struct {
		Archives []archiveView `json:"archives"`
	}](t, f.do(t, http.MethodGet, "/api/v1/archives?limit=10", ""))
	require.Len(t, list.Archives, 2)
	assert.Equal(t, "a2", list.Archives[0].ArchiveID)

	one := decode[archiveView](t, f.do(t, http.MethodGet, "/api/v1/archives/a1", ""))
	assert.Equal(t, catalog.StatusOK, one.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/archives/missing", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/archives?limit=-1", "").StatusCode)
}

func TestProbesAndMetrics(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "").StatusCode)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/metrics", "").StatusCode)
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/v1/stream/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, f.sink.Stream().Start(0))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "), line)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, string(archive.EventStarted), ev["type"])
	assert.Equal(t, "ctl", ev["stream_id"])
}
