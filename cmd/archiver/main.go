// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/ManuGH/xg2g-archive/internal/daemon"
	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("archiver", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	inPath := fs.String("in", "-", "input to archive (\"-\" reads stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(strings.TrimSpace(*configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", loader.Path()).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")
	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", loader.Path()).
		Msg("configuration loaded")

	input, err := openInput(*inPath, stdin)
	if err != nil {
		logger.Error().Err(err).Str("event", "input.open_failed").Msg("failed to open input")
		return 1
	}
	defer func() { _ = input.Close() }()

	holder := config.NewHolder(cfg, loader)
	app, err := daemon.Bootstrap(ctx, cfg, holder, input)
	if err != nil {
		logger.Error().Err(err).Str("event", "startup.failed").Msg("bootstrap failed")
		return 1
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().
			Err(err).
			Str("event", "daemon.failed").
			Str("archive_id", app.ArchiveID()).
			Msg("archiver exited with error")
		return 1
	}
	logger.Info().
		Str("event", "daemon.stopped").
		Str("archive_id", app.ArchiveID()).
		Msg("archiver stopped")
	return 0
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path) // #nosec G304 -- operator-supplied input path
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
