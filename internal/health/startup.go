// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks prepares and validates the filesystem before the
// archiver starts writing.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ensureWritableDir(logger, "data", cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := ensureWritableDir(logger, "archive root", cfg.Archive.Root); err != nil {
		return fmt.Errorf("archive root check failed: %w", err)
	}

	tempDir := filepath.Clean(os.TempDir())
	root := filepath.Clean(cfg.Archive.Root)
	if tempDir != "." && (root == tempDir || strings.HasPrefix(root, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str(log.FieldPath, cfg.Archive.Root).
			Msg("archive root is under temp; archives may be lost on reboot")
	}
	if cfg.Catalog.Backend == "memory" {
		logger.Warn().Msg("catalog uses in-memory store; archive history is not persistent across restarts")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func ensureWritableDir(logger zerolog.Logger, label, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s directory %s: %w", label, path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	if err := probeWritable(path); err != nil {
		return err
	}
	logger.Info().Str(log.FieldPath, path).Msgf("%s directory is writable", label)
	return nil
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
