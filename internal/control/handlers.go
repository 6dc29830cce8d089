// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 64 << 10
	sseWriteTimeout  = 10 * time.Second
)

type mediaTypeView struct {
	Major   string `json:"major"`
	Subtype string `json:"subtype,omitempty"`
}

// StreamStatus is the body of GET /api/v1/stream.
type StreamStatus struct {
	ID              string         `json:"id"`
	State           string         `json:"state"`
	MediaType       *mediaTypeView `json:"mediaType,omitempty"`
	Queued          int            `json:"queued"`
	BytesWritten    uint64         `json:"bytesWritten"`
	SamplesWritten  uint64         `json:"samplesWritten"`
	SamplesDropped  uint64         `json:"samplesDropped"`
	SamplesFailed   uint64         `json:"samplesFailed"`
	MarkersSignaled uint64         `json:"markersSignaled"`
	StartOffset     string         `json:"startOffset"`
	Error           string         `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.sink.Stream()
	stats := st.Stats()
	resp := StreamStatus{
		ID:              st.ID(),
		State:           stats.State.String(),
		Queued:          stats.Queued,
		BytesWritten:    stats.BytesWritten,
		SamplesWritten:  stats.SamplesWritten,
		SamplesDropped:  stats.SamplesDropped,
		SamplesFailed:   stats.SamplesFailed,
		MarkersSignaled: stats.MarkersSignaled,
		StartOffset:     stats.StartOffset.String(),
	}
	if mt, err := st.CurrentMediaType(); err == nil {
		resp.MediaType = &mediaTypeView{Major: mt.Major, Subtype: mt.Subtype}
	}
	if stats.Err != nil {
		resp.Error = stats.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStart starts the stream. ?offset=<duration> sets the start offset;
// without it the presentation clock position is used.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	offset := archive.CurrentPosition
	if raw := r.URL.Query().Get("offset"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "request/invalid_offset", "Invalid Offset", err.Error(), nil)
			return
		}
		offset = d
	}
	if err := s.sink.OnClockStart(time.Now(), offset); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClock(fn func(time.Time) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(time.Now()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleFlush drops every queued sample and marker; the state is unchanged.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.sink.Flush(); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markerRequest struct {
	Type    string `json:"type"`
	Value   any    `json:"value,omitempty"`
	Context any    `json:"context,omitempty"`
}

func (s *Server) handleMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "request/invalid_body", "Invalid Body", err.Error(), nil)
		return
	}
	typ := archive.MarkerEvent
	if req.Type != "" {
		var ok bool
		if typ, ok = archive.ParseMarkerType(req.Type); !ok {
			writeProblem(w, r, http.StatusBadRequest, "request/invalid_marker", "Invalid Marker",
				fmt.Sprintf("unknown marker type %q", req.Type), nil)
			return
		}
	}
	if err := s.sink.Stream().PlaceMarker(archive.NewMarker(typ, req.Value, req.Context)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type finalizeResponse struct {
	Finalized bool   `json:"finalized"`
	Error     string `json:"error,omitempty"`
}

// handleFinalize begins finalizing. With ?wait=true it answers once the
// archive is closed; otherwise it answers 202 right away.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	res, err := s.finalize()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, finalizeResponse{})
		return
	}
	if err := s.sink.EndFinalize(r.Context(), res); err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusOK, finalizeResponse{Finalized: true, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Finalized: true})
}

// handleEvents streams bus events as server-sent events until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := s.sink.Stream().Subscribe(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = sub.Close() }()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn().Err(err).Msg("skipping unencodable event")
				continue
			}
			// A client that stops reading is dropped; the bus closes its
			// subscription too once it falls behind.
			_ = rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout))
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, r, catalog.ErrNotFound)
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeProblem(w, r, http.StatusBadRequest, "request/invalid_limit", "Invalid Limit",
				"limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxListLimit)
	}
	entries, err := s.catalog.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]archiveView, 0, len(entries))
	for i := range entries {
		views = append(views, newArchiveView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": views})
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, r, catalog.ErrNotFound)
		return
	}
	e, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newArchiveView(e))
}

type archiveView struct {
	ArchiveID   string    `json:"archiveId"`
	StreamID    string    `json:"streamId"`
	Path        string    `json:"path"`
	MajorType   string    `json:"majorType"`
	Subtype     string    `json:"subtype,omitempty"`
	Framed      bool      `json:"framed"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Bytes       uint64    `json:"bytes"`
	Samples     uint64    `json:"samples"`
	Dropped     uint64    `json:"dropped"`
	Markers     uint64    `json:"markers"`
	StartedAt   time.Time `json:"startedAt"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

func newArchiveView(e *catalog.Entry) archiveView {
	return archiveView{
		ArchiveID:   e.ArchiveID,
		StreamID:    e.StreamID,
		Path:        e.Path,
		MajorType:   e.MajorType,
		Subtype:     e.Subtype,
		Framed:      e.Framed,
		Status:      e.Status,
		Error:       e.Error,
		Bytes:       e.Bytes,
		Samples:     e.Samples,
		Dropped:     e.Dropped,
		Markers:     e.Markers,
		StartedAt:   e.StartedAt,
		FinalizedAt: e.FinalizedAt,
	}
}
