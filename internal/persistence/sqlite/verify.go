// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// IntegrityMode selects the SQLite consistency pragma.
type IntegrityMode string

const (
	IntegrityQuick IntegrityMode = "quick" // PRAGMA quick_check
	IntegrityFull  IntegrityMode = "full"  // PRAGMA integrity_check
)

// VerifyIntegrity runs the pragma for mode on db and returns the problems
// SQLite reports. A nil slice means the database is consistent.
func VerifyIntegrity(ctx context.Context, db *sql.DB, mode IntegrityMode) ([]string, error) {
	pragma := "PRAGMA quick_check"
	if mode == IntegrityFull {
		pragma = "PRAGMA integrity_check"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
	}
	defer func() { _ = rows.Close() }()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("sqlite: scan integrity row: %w", err)
		}
		if !strings.EqualFold(line, "ok") {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: integrity rows: %w", err)
	}
	return problems, nil
}
