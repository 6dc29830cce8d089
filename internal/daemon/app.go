// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon runs one archive session: it feeds the input into the
// sink, serves the control API, applies config reloads and, on exit,
// finalizes the archive, records it in the catalog and releases resources.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/ManuGH/xg2g-archive/internal/control"
	"github.com/ManuGH/xg2g-archive/internal/feeder"
	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const catalogWriteTimeout = 5 * time.Second

// App owns the lifecycle of one archive session.
type App struct {
	deps      Deps
	cfg       config.AppConfig
	feeder    *feeder.Feeder
	control   *control.Server
	logger    zerolog.Logger
	archiveID string
	startedAt time.Time

	reloadSignal os.Signal

	mu          sync.Mutex
	running     bool
	hooks       []namedHook
	finalizeRes *archive.FinalizeResult
	recording   sync.WaitGroup
}

// NewApp validates deps and builds the feeder.
func NewApp(deps Deps) (*App, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	f, err := feeder.New(deps.Sink.Stream(), feederConfig(deps.Config.Feeder))
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &App{
		deps:         deps,
		cfg:          deps.Config,
		feeder:       f,
		archiveID:    id,
		reloadSignal: syscall.SIGHUP,
		logger: xglog.WithComponent("daemon").With().
			Str(xglog.FieldArchiveID, id).
			Str(xglog.FieldStreamID, deps.Sink.Stream().ID()).
			Logger(),
	}, nil
}

// ArchiveID identifies this session's catalog entry.
func (a *App) ArchiveID() string { return a.archiveID }

// SetControl attaches the control server; it is served during Run.
func (a *App) SetControl(s *control.Server) { a.control = s }

// Run archives the input until it is exhausted or ctx ends, then finalizes
// and shuts down. The archive is finalized in both cases.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	a.startedAt = time.Now()
	g, gctx := errgroup.WithContext(ctx)

	if h := a.deps.Holder; h != nil {
		if err := h.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		applyCh := make(chan config.AppConfig, 1)
		h.RegisterListener(applyCh)
		g.Go(func() error { return a.applyReloads(gctx, applyCh) })
		if a.reloadSignal != nil {
			g.Go(func() error { return a.watchReloadSignal(gctx) })
		}
	}

	if a.control != nil && a.cfg.Control.Enabled {
		g.Go(func() error { return a.control.ListenAndServe(gctx, a.cfg.Control.ListenAddr) })
	}

	g.Go(func() error { return a.feed(gctx) })

	runErr := g.Wait()
	if errors.Is(runErr, errInputDone) || (runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err())) {
		runErr = nil
	}
	if h := a.deps.Holder; h != nil {
		h.Stop()
	}
	return errors.Join(runErr, a.finish())
}

func (a *App) feed(ctx context.Context) error {
	if err := a.deps.Sink.OnClockStart(time.Now(), 0); err != nil {
		if finalizedElsewhere(err) {
			return errInputDone
		}
		return fmt.Errorf("start stream: %w", err)
	}
	a.logger.Info().Str(xglog.FieldEvent, "archive.session_started").Msg("archiving input")

	type outcome struct {
		res feeder.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.feeder.Run(ctx, a.deps.Input)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		// A blocked read only returns once the input is closed.
		if c, ok := a.deps.Input.(io.Closer); ok {
			_ = c.Close()
		}
		return ctx.Err()
	}
	res, err := out.res, out.err
	a.logger.Info().
		Int(xglog.FieldSamples, res.Samples).
		Int(xglog.FieldMarkers, res.Markers).
		Int64(xglog.FieldBytes, res.Bytes).
		Msg("feeder stopped")
	if err == nil || finalizedElsewhere(err) {
		return errInputDone
	}
	return err
}

// finalizedElsewhere reports errors caused by a finalize from the control API.
func finalizedElsewhere(err error) bool {
	return errors.Is(err, archive.ErrInvalidState) || errors.Is(err, archive.ErrAlreadyFinalizing)
}

func (a *App) applyReloads(ctx context.Context, ch <-chan config.AppConfig) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-ch:
			if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			a.feeder.SetRate(cfg.Feeder.RatePerSecond)
		}
	}
}

func (a *App) watchReloadSignal(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, a.reloadSignal)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			a.logger.Info().
				Str(xglog.FieldEvent, "config.reload_signal").
				Str("signal", a.reloadSignal.String()).
				Msg("received reload signal, reloading config")
			if err := a.deps.Holder.Reload(ctx); err != nil {
				a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
			}
		}
	}
}

// beginFinalize starts finalizing once. Later calls return the same result
// with begun == false.
func (a *App) beginFinalize() (res *archive.FinalizeResult, begun bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalizeRes != nil {
		return a.finalizeRes, false, nil
	}
	res, err = a.deps.Sink.BeginFinalize()
	if err != nil {
		return nil, false, err
	}
	a.finalizeRes = res
	a.recording.Add(1)
	go a.record(res)
	return res, true, nil
}

// Finalize is the control API entry point. A second call reports
// archive.ErrAlreadyFinalizing.
func (a *App) Finalize() (*archive.FinalizeResult, error) {
	res, begun, err := a.beginFinalize()
	if err != nil {
		return nil, err
	}
	if !begun {
		return nil, archive.ErrAlreadyFinalizing
	}
	return res, nil
}

// record writes the catalog entry once res completes.
func (a *App) record(res *archive.FinalizeResult) {
	defer a.recording.Done()
	<-res.Done()

	st := a.deps.Sink.Stream()
	stats := st.Stats()
	entry := &catalog.Entry{
		ArchiveID:   a.archiveID,
		StreamID:    st.ID(),
		Path:        a.deps.ArchivePath,
		Framed:      a.cfg.Archive.Framing,
		Status:      catalog.StatusOK,
		Bytes:       stats.BytesWritten,
		Samples:     stats.SamplesWritten,
		Dropped:     stats.SamplesDropped,
		Markers:     stats.MarkersSignaled,
		StartedAt:   a.startedAt.UTC(),
		FinalizedAt: time.Now().UTC(),
	}
	if mt, err := st.CurrentMediaType(); err == nil {
		entry.MajorType, entry.Subtype = mt.Major, mt.Subtype
	}
	if err := res.Err(); err != nil {
		entry.Error = err.Error()
		entry.Status = catalog.StatusFailed
		if stats.SamplesFailed > 0 {
			entry.Status = catalog.StatusAborted
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogWriteTimeout)
	defer cancel()
	if err := a.deps.Catalog.Put(ctx, entry); err != nil {
		a.logger.Error().Err(err).Str(xglog.FieldEvent, "catalog.put_failed").Msg("failed to record archive")
		return
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "catalog.recorded").
		Str("status", entry.Status).
		Str(xglog.FieldPath, entry.Path).
		Msg("archive recorded")
}

// finish finalizes (unless the control API already did), waits for the
// catalog entry, shuts the sink down and runs the shutdown hooks.
func (a *App) finish() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Archive.ShutdownTimeout)
	defer cancel()

	var errs []error
	res, _, err := a.beginFinalize()
	if err != nil {
		errs = append(errs, fmt.Errorf("finalize archive: %w", err))
	} else {
		if err := a.deps.Sink.EndFinalize(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("finalize archive: %w", err))
		}
		// record only runs once res is done
		select {
		case <-res.Done():
			a.recording.Wait()
		default:
			a.logger.Warn().Msg("finalize did not complete in time; archive not recorded")
		}
	}

	if err := a.deps.Sink.Shutdown(ctx); err != nil && !errors.Is(err, archive.ErrShutdown) {
		errs = append(errs, fmt.Errorf("shutdown sink: %w", err))
	}
	if err := a.runShutdownHooks(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		a.logger.Info().Str(xglog.FieldEvent, "archive.session_finished").Msg("archive session finished")
	}
	return errors.Join(errs...)
}
