// Package store wraps the embedded transactional database (sqlite3) that
// backs the Persistent Store: workspaces, sessions, events, device tokens,
// and a colocated full-text index. It owns the schema, connection
// pragmas, and the transient-contention retry policy; it knows nothing
// about event kinds, session linearization, or forking — those live in
// internal/eventstore.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"

	"github.com/evttree/eventstore/internal/logging"
)

// DB wraps the sqlite connection pool plus the retry policy applied to
// transient SQLITE_BUSY/SQLITE_LOCKED errors.
type DB struct {
	conn  *sql.DB
	clock func() time.Time
}

// Config controls where and how the Persistent Store opens its database.
type Config struct {
	// Path is the sqlite file path. ":memory:" is accepted for tests.
	Path string
	// EnableFTS toggles creation of the events_fts virtual table. Off by
	// default only matters for environments without FTS5 compiled in.
	EnableFTS bool
}

// DefaultConfig returns sane defaults for a single-process deployment.
func DefaultConfig(path string) Config {
	return Config{Path: path, EnableFTS: true}
}

// Open creates (or reuses) the database file, applies pragmas, and
// ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=3000", cfg.Path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite3 serializes writers; a single connection avoids spurious
	// SQLITE_BUSY from the pool racing itself.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db := &DB{conn: conn, clock: time.Now}

	if err := db.migrate(ctx, cfg.EnableFTS); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying *sql.DB for packages (internal/eventstore)
// that build queries directly against the schema this package owns.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Now returns the store's clock, overridable in tests.
func (db *DB) Now() time.Time {
	return db.clock().UTC()
}

// retryPolicy bounds the accommodation for SQLITE_BUSY/SQLITE_LOCKED:
// a handful of short backoffs, giving up after 500ms in total.
func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 500 * time.Millisecond
	b.Multiplier = 2.0
	return b
}

// WithRetry runs fn, retrying while it returns a transient sqlite
// contention error (SQLITE_BUSY or SQLITE_LOCKED), and wraps any
// terminal failure as a PersistenceError. Exported so internal/eventstore
// can run its own transactions (append, fork, create session)
// through the same bounded-backoff accommodation instead of surfacing
// SQLITE_BUSY to the caller on the first hit — the idle sweep and an
// active session's append chain both hit this file concurrently.
func WithRetry(ctx context.Context, op string, fn func() error) error {
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isBusyOrLocked(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(retryPolicy(), ctx))

	if err == nil {
		return nil
	}
	if perm, ok := err.(*backoff.PermanentError); ok {
		err = perm.Err
	}
	logging.Component("store").Debug().Str("op", op).Err(err).Msg("persistent store operation failed")
	return &PersistenceError{Op: op, Cause: err}
}

func isBusyOrLocked(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}
