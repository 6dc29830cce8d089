// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/bus"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/ManuGH/xg2g-archive/internal/control"
	"github.com/ManuGH/xg2g-archive/internal/control/middleware"
	"github.com/ManuGH/xg2g-archive/internal/destination"
	"github.com/ManuGH/xg2g-archive/internal/health"
	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

const serviceName = "xg2g-archive"

// Bootstrap wires every component for cfg and returns an App ready to Run.
// On error, everything built so far is released.
func Bootstrap(ctx context.Context, cfg config.AppConfig, holder *config.Holder, input io.Reader) (app *App, err error) {
	logger := xglog.WithComponent("bootstrap")
	var hooks []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(hooks) - 1; i >= 0; i-- {
			if herr := hooks[i].hook(context.WithoutCancel(ctx)); herr != nil {
				logger.Warn().Err(herr).Str("hook", hooks[i].name).Msg("cleanup after failed bootstrap")
			}
		}
	}()
	addHook := func(name string, h ShutdownHook) { hooks = append(hooks, namedHook{name: name, hook: h}) }

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		StreamID:       cfg.Archive.StreamID,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	addHook("telemetry", tp.Shutdown)

	eventBus, redisClient, err := newBus(ctx, cfg.Bus)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		addHook("redis", func(context.Context) error { return redisClient.Close() })
	}

	store, err := catalog.NewStore(cfg.Catalog.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	addHook("catalog", func(context.Context) error { return store.Close() })

	dest, err := destination.CreateFile(cfg.Archive.Root, cfg.Archive.Name)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	sink, err := archive.NewSink(archive.StreamConfig{
		ID:          cfg.Archive.StreamID,
		Destination: dest,
		Bus:         eventBus,
		Framing:     cfg.Archive.Framing,

		PublishTimeout: cfg.Archive.PublishTimeout,
	})
	if err != nil {
		_ = dest.Abort()
		return nil, fmt.Errorf("sink: %w", err)
	}
	// Until Run owns the sink, a failed bootstrap shuts it down, which
	// aborts the unfinished destination.
	defer func() {
		if err != nil {
			_ = sink.Shutdown(context.WithoutCancel(ctx))
		}
	}()
	if err := sink.Stream().SetMediaType(&archive.MediaType{
		Major:   cfg.Archive.MajorType,
		Subtype: cfg.Archive.Subtype,
	}); err != nil {
		return nil, fmt.Errorf("media type: %w", err)
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewDirChecker("archive_root", cfg.Archive.Root))
	hm.RegisterChecker(streamChecker(sink.Stream()))
	if redisClient != nil {
		hm.RegisterChecker(redisChecker(redisClient))
	}
	if v, ok := store.(catalog.Verifier); ok {
		hm.RegisterChecker(catalogChecker(v))
	}

	app, err = NewApp(Deps{
		Config:      cfg,
		Holder:      holder,
		Input:       input,
		Sink:        sink,
		Catalog:     store,
		Health:      hm,
		ArchivePath: dest.Path(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Control.Enabled {
		stack := middleware.StackConfig{EnableMetrics: true, RateLimit: cfg.Control.RateLimit}
		if cfg.Telemetry.Enabled {
			stack.TracingService = serviceName
		}
		srv, err := control.New(control.Deps{
			Sink:     sink,
			Catalog:  store,
			Health:   hm,
			Finalize: app.Finalize,
			Stack:    stack,
		})
		if err != nil {
			return nil, err
		}
		app.SetControl(srv)
	}

	for _, h := range hooks {
		app.RegisterShutdownHook(h.name, h.hook)
	}
	hooks = nil

	logger.Info().
		Str(xglog.FieldPath, dest.Path()).
		Str("bus", cfg.Bus.Backend).
		Str("catalog", cfg.Catalog.Backend).
		Bool("framing", cfg.Archive.Framing).
		Msg("archiver wired")
	return app, nil
}

func newBus(ctx context.Context, cfg config.BusConfig) (bus.Bus, *redis.Client, error) {
	switch cfg.Backend {
	case "", "memory":
		return bus.NewMemoryBusWithBuffer(cfg.Buffer), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis bus %s: %w", cfg.RedisAddr, err)
		}
		return bus.NewRedisBus(client, cfg.RedisPrefix), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus backend: %s", cfg.Backend)
	}
}

func streamChecker(st *archive.Stream) health.Checker {
	return health.NewFuncChecker("stream", func(context.Context) health.CheckResult {
		stats := st.Stats()
		if stats.Err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Error: stats.Err.Error(), Message: stats.State.String()}
		}
		if stats.State != archive.StateStarted {
			return health.CheckResult{Status: health.StatusDegraded, Message: stats.State.String()}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: stats.State.String()}
	})
}

func redisChecker(client *redis.Client) health.Checker {
	return health.NewFuncChecker("bus", func(ctx context.Context) health.CheckResult {
		if err := client.Ping(ctx).Err(); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: "redis reachable"}
	})
}

func catalogChecker(v catalog.Verifier) health.Checker {
	return health.NewFuncChecker("catalog", func(ctx context.Context) health.CheckResult {
		if err := v.Verify(ctx); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: "integrity ok"}
	})
}
