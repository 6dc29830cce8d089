// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package destination

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	xglog "github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// File writes an archive to a pending temp file next to its final path.
// The archive only appears under its name once Close succeeds; Abort
// removes the temp file and leaves any previous archive untouched.
type File struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	pending *renameio.PendingFile
	done    bool
}

// CreateFile opens a file destination for name underneath root.
func CreateFile(root, name string) (*File, error) {
	path, err := ConfinePath(root, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o640))
	if err != nil {
		return nil, fmt.Errorf("create pending archive file: %w", err)
	}
	return &File{
		path:    path,
		pending: pending,
		logger:  xglog.WithComponent("destination").With().Str(xglog.FieldPath, path).Logger(),
	}, nil
}

// Path is the final archive path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return 0, ErrClosed
	}
	return f.pending.Write(p)
}

// Close syncs the temp file and renames it over the final path.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return ErrClosed
	}
	f.done = true
	if err := f.pending.CloseAtomicallyReplace(); err != nil {
		if cerr := f.pending.Cleanup(); cerr != nil {
			f.logger.Debug().Err(cerr).Msg("cleanup pending archive file")
		}
		return fmt.Errorf("atomically replace archive file: %w", err)
	}
	f.logger.Info().Str(xglog.FieldEvent, "archive.committed").Msg("archive file committed")
	return nil
}

// Abort discards the temp file.
func (f *File) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil
	}
	f.done = true
	if err := f.pending.Cleanup(); err != nil {
		return fmt.Errorf("discard pending archive file: %w", err)
	}
	f.logger.Warn().Str(xglog.FieldEvent, "archive.discarded").Msg("archive file discarded")
	return nil
}
