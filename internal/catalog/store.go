// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog records finalized archives.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by Get for an unknown archive.
	ErrNotFound = errors.New("catalog: archive not found")
	// ErrCorrupt is returned by Verify when the backing database fails its integrity check.
	ErrCorrupt = errors.New("catalog: database corrupt")
)

// Verifier is implemented by stores that can check their own consistency.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Status of a cataloged archive.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

// Entry describes one archive.
type Entry struct {
	ArchiveID   string
	StreamID    string
	Path        string
	MajorType   string
	Subtype     string
	Framed      bool
	Status      string
	Error       string
	Bytes       uint64
	Samples     uint64
	Dropped     uint64
	Markers     uint64
	StartedAt   time.Time
	FinalizedAt time.Time
}

// Store persists catalog entries.
type Store interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, archiveID string) (*Entry, error)
	// List returns up to limit entries, most recently finalized first.
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NewStore creates a store for backend. An empty backend means sqlite;
// sqlite without a directory falls back to memory.
func NewStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "catalog.sqlite"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend: %s (supported: sqlite, memory)", backend)
	}
}

// MemoryStore implements Store using a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, e *Entry) error {
	if e == nil || e.ArchiveID == "" {
		return errors.New("catalog: entry without archive id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e.ArchiveID] = *e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, archiveID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[archiveID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FinalizedAt.Equal(out[j].FinalizedAt) {
			return out[i].FinalizedAt.After(out[j].FinalizedAt)
		}
		return out[i].ArchiveID < out[j].ArchiveID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = map[string]Entry{}
	s.mu.Unlock()
	return nil
}
