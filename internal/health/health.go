// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health serves liveness and readiness probes for the archiver,
// with per-component status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 2 * time.Second

// Status of a component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one component's verdict.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness probe body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker inspects one component (archive root, stream, bus).
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers for both probes.
type Manager struct {
	version      string
	checkTimeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// NewManager creates a manager reporting version on the liveness probe.
func NewManager(version string) *Manager {
	return &Manager{version: version, checkTimeout: DefaultCheckTimeout}
}

// SetCheckTimeout overrides DefaultCheckTimeout; d <= 0 is ignored.
func (m *Manager) SetCheckTimeout(d time.Duration) {
	if d > 0 {
		m.checkTimeout = d
	}
}

// RegisterChecker adds a checker. Checkers run in parallel.
func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	m.checkers = append(m.checkers, checker)
	m.mu.Unlock()
}

func (m *Manager) snapshot() []Checker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Checker(nil), m.checkers...)
}

// evaluate runs every checker concurrently and folds the results into one
// status. A checker that overruns its timeout counts as unhealthy.
func (m *Manager) evaluate(ctx context.Context, checkers []Checker) (Status, map[string]CheckResult) {
	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = m.runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	status := StatusHealthy
	checks := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		res := results[i]
		checks[c.Name()] = res
		switch {
		case res.Status == StatusUnhealthy:
			status = StatusUnhealthy
		case res.Status == StatusDegraded && status == StatusHealthy:
			status = StatusDegraded
		}
	}
	return status, checks
}

func (m *Manager) runCheck(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	done := make(chan CheckResult, 1)
	go func() { done <- c.Check(ctx) }()
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return CheckResult{Status: StatusUnhealthy, Error: "check timed out"}
	}
}

// Health is the liveness view. Components are only evaluated when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{Status: StatusHealthy, Version: m.version, Timestamp: time.Now()}
	if checkers := m.snapshot(); verbose && len(checkers) > 0 {
		resp.Status, resp.Checks = m.evaluate(ctx, checkers)
	}
	return resp
}

// Ready is the readiness view: any unhealthy component makes the process not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: time.Now()}
	if checkers := m.snapshot(); len(checkers) > 0 {
		resp.Status, resp.Checks = m.evaluate(ctx, checkers)
		resp.Ready = resp.Status != StatusUnhealthy
	}
	return resp
}

// ServeHealth answers the liveness probe; always 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)
	writeProbe(w, r, "health", http.StatusOK, resp.Status, resp)
}

// ServeReady answers the readiness probe; 503 while not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeProbe(w, r, "readiness", code, resp.Status, resp)
}

func writeProbe(w http.ResponseWriter, r *http.Request, probe string, code int, status Status, body any) {
	logger := log.WithComponentFromContext(r.Context(), probe)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, probe+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(log.FieldEvent, probe+".checked").
		Str("status", string(status)).
		Int("code", code).
		Msg("probe served")
}

// FuncChecker adapts a function to a Checker.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewFuncChecker creates a named checker backed by fn.
func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// DirChecker reports whether the archive root is still a writable directory.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for a writable directory.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	switch {
	case os.IsNotExist(err):
		return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	case !info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	if err := probeWritable(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory writable"}
}
