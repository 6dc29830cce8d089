// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package control exposes the archive sink over HTTP: transport controls,
// markers, finalize, stream status and events, the archive catalog, probes
// and Prometheus metrics.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/control/middleware"
	"github.com/ManuGH/xg2g-archive/internal/health"
	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// FinalizeFunc begins finalizing the archive. It defaults to Sink.BeginFinalize.
type FinalizeFunc func() (*archive.FinalizeResult, error)

// Deps are the collaborators of the control server.
type Deps struct {
	Sink     *archive.Sink // required
	Catalog  catalog.Store // optional; archive routes answer 404 without it
	Health   *health.Manager
	Finalize FinalizeFunc
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Stack    middleware.StackConfig
}

// Server is the control API.
type Server struct {
	sink     *archive.Sink
	catalog  catalog.Store
	health   *health.Manager
	finalize FinalizeFunc
	router   chi.Router
	logger   zerolog.Logger
}

// New builds the server and its routes.
func New(d Deps) (*Server, error) {
	if d.Sink == nil {
		return nil, errors.New("control: sink is required")
	}
	s := &Server{
		sink:     d.Sink,
		catalog:  d.Catalog,
		health:   d.Health,
		finalize: d.Finalize,
		logger:   xglog.WithComponent("control"),
	}
	if s.finalize == nil {
		s.finalize = d.Sink.BeginFinalize
	}
	if s.health == nil {
		s.health = health.NewManager("")
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := middleware.NewRouter(d.Stack)
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stream", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Get("/events", s.handleEvents)
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handleClock(s.sink.OnClockPause))
			r.Post("/restart", s.handleClock(s.sink.OnClockRestart))
			r.Post("/stop", s.handleClock(s.sink.OnClockStop))
			r.Post("/flush", s.handleFlush)
			r.Post("/marker", s.handleMarker)
			r.Post("/finalize", s.handleFinalize)
		})
		r.Get("/archives", s.handleListArchives)
		r.Get("/archives/{id}", s.handleGetArchive)
	})
	s.router = r
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// Request contexts derive from ctx so event streams end on shutdown.
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str(xglog.FieldEvent, "control.listen").Str("addr", addr).Msg("control API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control: serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control: shutdown: %w", err)
	}
	<-errCh
	s.logger.Info().Str(xglog.FieldEvent, "control.stopped").Msg("control API stopped")
	return nil
}
