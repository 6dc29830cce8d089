// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package destination

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File writes an archive to a temp file and renames it into place on Close.
type File struct {
	path string

	mu   sync.Mutex
	tmp  *os.File
	done bool
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
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create pending archive file: %w", err)
	}
	return &File{path: path, tmp: tmp}, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return 0, ErrClosed
	}
	return f.tmp.Write(p)
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return ErrClosed
	}
	f.done = true
	if err := f.tmp.Sync(); err != nil {
		_ = f.tmp.Close()
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("sync archive file: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("close archive file: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("rename archive file: %w", err)
	}
	return nil
}

func (f *File) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil
	}
	f.done = true
	_ = f.tmp.Close()
	if err := os.Remove(f.tmp.Name()); err != nil {
		return fmt.Errorf("discard pending archive file: %w", err)
	}
	return nil
}
