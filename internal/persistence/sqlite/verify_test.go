// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEnablesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "wal.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenFailsForMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "db.sqlite"), DefaultConfig())
	require.Error(t, err)
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "healthy.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, data TEXT)")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err = db.Exec("INSERT INTO t (data) VALUES (?)", "payload")
		require.NoError(t, err)
	}

	for _, mode := range []IntegrityMode{IntegrityQuick, IntegrityFull} {
		problems, err := VerifyIntegrity(context.Background(), db, mode)
		require.NoError(t, err, mode)
		assert.Nil(t, problems, mode)
	}
}

func TestVerifyIntegrityClosedDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "closed.sqlite"), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = VerifyIntegrity(context.Background(), db, IntegrityQuick)
	require.Error(t, err)
}
