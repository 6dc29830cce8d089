// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(name string, status Status) Checker {
	return NewFuncChecker(name, func(context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestHealthEvaluatesOnlyWhenVerbose(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(fixed("stream", StatusHealthy))
	m.RegisterChecker(fixed("catalog", StatusDegraded))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReadyFoldsStatuses(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []Status
		want      Status
		wantReady bool
	}{
		{name: "none", want: StatusHealthy, wantReady: true},
		{name: "healthy", statuses: []Status{StatusHealthy}, want: StatusHealthy, wantReady: true},
		{name: "degraded", statuses: []Status{StatusHealthy, StatusDegraded}, want: StatusDegraded, wantReady: true},
		{name: "unhealthy wins", statuses: []Status{StatusUnhealthy, StatusDegraded}, want: StatusUnhealthy, wantReady: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for i, s := range tt.statuses {
				m.RegisterChecker(fixed(string(rune('a'+i)), s))
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.wantReady, resp.Ready)
		})
	}
}

func TestServeReadyStatusCode(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(fixed("stream", StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Ready)
	assert.Equal(t, StatusUnhealthy, body.Checks["stream"].Status)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyTimesOutSlowChecker(t *testing.T) {
	m := NewManager("test")
	m.SetCheckTimeout(20 * time.Millisecond)
	m.RegisterChecker(fixed("stream", StatusHealthy))
	m.RegisterChecker(NewFuncChecker("bus", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return CheckResult{Status: StatusHealthy}
	}))

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Checks["stream"].Status)
	assert.Equal(t, "check timed out", resp.Checks["bus"].Error)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, NewDirChecker("root", dir).Check(context.Background()).Status)

	missing := NewDirChecker("root", filepath.Join(dir, "absent")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, missing.Status)
	assert.Equal(t, "directory not found", missing.Error)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Equal(t, StatusUnhealthy, NewDirChecker("root", file).Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "write probe must clean up")
}

func TestPerformStartupChecksCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.Archive.Root = filepath.Join(base, "data", "archives")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.Archive.Root)
}

func TestPerformStartupChecksRejectsFileAsRoot(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := config.Defaults()
	cfg.DataDir = base
	cfg.Archive.Root = file
	require.Error(t, PerformStartupChecks(context.Background(), cfg))
}
