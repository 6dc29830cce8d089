// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/xg2g-archive/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB   *sql.DB
	path string
}

// NewSqliteStore opens (and migrates) the catalog database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SqliteStore{DB: db, path: dbPath}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var current int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS archives (
		archive_id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL,
		path TEXT NOT NULL,
		major_type TEXT NOT NULL,
		subtype TEXT NOT NULL DEFAULT '',
		framed BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL,
		samples INTEGER NOT NULL,
		dropped INTEGER NOT NULL,
		markers INTEGER NOT NULL,
		started_at_ms INTEGER NOT NULL,
		finalized_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archives_finalized ON archives(finalized_at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Put(ctx context.Context, e *Entry) error {
	if e == nil || e.ArchiveID == "" {
		return errors.New("catalog: entry without archive id")
	}
	query := `
	INSERT INTO archives (archive_id, stream_id, path, major_type, subtype, framed, status, error,
		bytes, samples, dropped, markers, started_at_ms, finalized_at_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(archive_id) DO UPDATE SET
		status = excluded.status,
		error = excluded.error,
		bytes = excluded.bytes,
		samples = excluded.samples,
		dropped = excluded.dropped,
		markers = excluded.markers,
		finalized_at_ms = excluded.finalized_at_ms
	`
	_, err := s.DB.ExecContext(ctx, query,
		e.ArchiveID, e.StreamID, e.Path, e.MajorType, e.Subtype, e.Framed, e.Status, e.Error,
		int64(e.Bytes), int64(e.Samples), int64(e.Dropped), int64(e.Markers),
		e.StartedAt.UnixMilli(), e.FinalizedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("catalog: put %s: %w", e.ArchiveID, err)
	}
	return nil
}

const selectColumns = `archive_id, stream_id, path, major_type, subtype, framed, status, error,
	bytes, samples, dropped, markers, started_at_ms, finalized_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e                          Entry
		bytes, samples, dropped    int64
		markers, started, finished int64
	)
	err := row.Scan(&e.ArchiveID, &e.StreamID, &e.Path, &e.MajorType, &e.Subtype, &e.Framed,
		&e.Status, &e.Error, &bytes, &samples, &dropped, &markers, &started, &finished)
	if err != nil {
		return nil, err
	}
	e.Bytes, e.Samples, e.Dropped, e.Markers = uint64(bytes), uint64(samples), uint64(dropped), uint64(markers)
	e.StartedAt = time.UnixMilli(started).UTC()
	e.FinalizedAt = time.UnixMilli(finished).UTC()
	return &e, nil
}

func (s *SqliteStore) Get(ctx context.Context, archiveID string) (*Entry, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM archives WHERE archive_id = ?", archiveID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", archiveID, err)
	}
	return e, nil
}

func (s *SqliteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM archives ORDER BY finalized_at_ms DESC, archive_id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Verify runs a quick integrity check and reports corruption as ErrCorrupt.
func (s *SqliteStore) Verify(ctx context.Context) error {
	problems, err := sqlite.VerifyIntegrity(ctx, s.DB, sqlite.IntegrityQuick)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrCorrupt, s.path, strings.Join(problems, "; "))
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
