// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// The credential store is deliberately a single authoritative store — one
// service owns identity for the whole domain family. An embedded database
// with no separate server matches that design exactly, and a single binary
// plus one file is the entire deployment.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite source — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
//
// docMu serializes document read-modify-write cycles (PutServiceSlice).
// SQLite serializes writers globally anyway, but two deferred transactions
// that both read before upgrading to a write can deadlock into SQLITE_BUSY;
// taking the mutex before the transaction sidesteps the upgrade race
// entirely. Reads never take it.
type DB struct {
	conn  *sql.DB
	docMu sync.Mutex
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/auth.db" → file-based database (persistent)
//
// Tests point dbPath at a file in t.TempDir(). ":memory:" would be tempting
// but database/sql pools connections and each pooled connection to :memory:
// gets its own private database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path or permission problem
	// surfaces here instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets concurrent reads proceed while a write is in flight —
	// important for a request-parallel HTTP server.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Wait up to 5s on a locked database instead of failing immediately.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Call it on shutdown so the WAL
// is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// username has no COLLATE clause — SQLite's default BINARY collation makes
// the UNIQUE constraint case-sensitive, which is the uniqueness rule we
// want ("Alice" and "alice" are different accounts).
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT UNIQUE NOT NULL,
			pin_hash      TEXT NOT NULL,
			user_data     TEXT NOT NULL DEFAULT '{}',
			created_at    DATETIME NOT NULL,
			last_login_at DATETIME,
			last_login_ip TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		CREATE INDEX IF NOT EXISTS idx_users_active ON users(is_active);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}
