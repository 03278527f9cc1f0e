package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite wraps the inspection log database file.
type SQLite struct {
	Client *sql.DB
}

// NewSQLite opens (creating if needed) the database at path in WAL mode.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLite{Client: db}, nil
}

// Healthy reports whether the database answers a ping.
func (s *SQLite) Healthy(ctx context.Context) bool {
	if s == nil || s.Client == nil {
		return false
	}
	return s.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (s *SQLite) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}
