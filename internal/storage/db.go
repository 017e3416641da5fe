// Package storage persists the query audit log.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Pablo751/dentcb/internal/config"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open connects to the configured audit database and verifies the connection.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if !cfg.DatabaseEnabled() {
		return nil, fmt.Errorf("database driver %q does not persist", cfg.Database.Driver)
	}

	db, err := sql.Open(cfg.SQLDriverName(), cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}

	// A single writer keeps sqlite from reporting "database is locked".
	if cfg.Database.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Database.Driver, err)
	}
	return db, nil
}
