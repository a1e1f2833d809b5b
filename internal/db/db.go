// Package db persists fetched snapshots and pipeline results in SQLite,
// so reruns and the dashboard work without refetching from the remote
// API.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path. The
// schema is managed by MigrateUp; callers should run it before use.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// modernc sqlite allows one writer; avoid SQLITE_BUSY from the API
	// server and pipeline sharing the handle.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &DB{sqlDB}, nil
}
