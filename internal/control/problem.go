// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/control/middleware"
	"github.com/ManuGH/xg2g-archive/internal/log"
)

// writeProblem writes an RFC 7807 problem details response.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string, extra map[string]any) {
	reqID := log.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":      problemType,
		"title":     title,
		"status":    status,
		"requestId": reqID,
		"instance":  r.URL.EscapedPath(),
	}
	if detail != "" {
		res["detail"] = detail
	}
	for k, v := range extra {
		if _, reserved := res[k]; reserved {
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "control")
		logger.Error().
			Err(err).
			Str("type", problemType).
			Int("status", status).
			Msg("failed to encode problem response")
	}
}

// writeError maps archive and catalog errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ise *archive.InvalidStateError
	switch {
	case errors.As(err, &ise):
		writeProblem(w, r, http.StatusConflict, "archive/invalid_state", "Invalid State", err.Error(),
			map[string]any{"state": ise.State.String(), "op": ise.Op.String()})
	case errors.Is(err, archive.ErrAlreadyFinalizing):
		writeProblem(w, r, http.StatusConflict, "archive/finalizing", "Finalize In Progress", err.Error(), nil)
	case errors.Is(err, archive.ErrShutdown):
		writeProblem(w, r, http.StatusServiceUnavailable, "archive/shutdown", "Shut Down", err.Error(), nil)
	case errors.Is(err, catalog.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "catalog/not_found", "Not Found", err.Error(), nil)
	default:
		logger := log.WithComponentFromContext(r.Context(), "control")
		logger.Error().Err(err).Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, "system/internal", "Internal Server Error", "", nil)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
