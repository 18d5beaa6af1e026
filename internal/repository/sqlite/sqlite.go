// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go, no CGo).
//
// CONCURRENCY MODEL:
// The pool is limited to ONE open connection. SQLite serialises writers
// anyway; with a single connection database/sql queues callers instead of
// letting them collide on SQLITE_BUSY, and ":memory:" databases (one per
// connection) behave like a single shared database in tests.
//
// The one consequence to remember: while a *sql.Tx is open it owns that
// connection. Code inside a transaction must use the tx, never db.conn,
// or it waits on itself forever.
//
// Every read-check-write that must be atomic (seat reservation, like
// counters, versioned user saves) is a single conditional statement or a
// transaction. Nothing here relies on in-process locks.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers work
// inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database and runs migrations.
//
// dbPath examples:
//   - "data/youthhub.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// Offerings of every kind share one table keyed by (kind, id). The
// CHECK constraints are the last line of defence for the seat invariants:
// seats_taken can never go negative or past a non-null capacity, whatever
// the code above does.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			provider      TEXT NOT NULL DEFAULT '',
			provider_id   TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'jovem',
			active        INTEGER NOT NULL DEFAULT 1,
			xp            INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
			level         INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
			version       INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> '';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider ON users(provider, provider_id) WHERE provider <> '';
		CREATE INDEX IF NOT EXISTS idx_users_ranking ON users(active, xp DESC, level DESC, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS offerings (
			id          TEXT NOT NULL,
			kind        TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			capacity    INTEGER CHECK (capacity IS NULL OR capacity >= 0),
			seats_taken INTEGER NOT NULL DEFAULT 0 CHECK (seats_taken >= 0),
			xp_reward   INTEGER NOT NULL DEFAULT 0 CHECK (xp_reward >= 0),
			likes_count INTEGER NOT NULL DEFAULT 0 CHECK (likes_count >= 0),
			starts_at   DATETIME,
			ends_at     DATETIME,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL,
			PRIMARY KEY (kind, id),
			CHECK (capacity IS NULL OR seats_taken <= capacity)
		);
		CREATE INDEX IF NOT EXISTS idx_offerings_kind_created ON offerings(kind, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating offerings table: %w", err)
	}

	// Per-user collections. position keeps list order stable across rewrites.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_enrollments (
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind        TEXT NOT NULL,
			offering_id TEXT NOT NULL,
			position    INTEGER NOT NULL,
			PRIMARY KEY (user_id, kind, offering_id)
		);
		CREATE TABLE IF NOT EXISTS user_reminders (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind       TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			remind_at  DATETIME,
			created_at DATETIME NOT NULL,
			position   INTEGER NOT NULL,
			PRIMARY KEY (user_id, kind, target_id)
		);
		CREATE TABLE IF NOT EXISTS user_checkins (
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind        TEXT NOT NULL,
			target_id   TEXT NOT NULL,
			xp_awarded  INTEGER NOT NULL,
			occurred_at DATETIME NOT NULL,
			position    INTEGER NOT NULL,
			PRIMARY KEY (user_id, kind, target_id)
		);
		CREATE TABLE IF NOT EXISTS user_achievements (
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			achievement_id TEXT NOT NULL,
			position       INTEGER NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		);
		CREATE TABLE IF NOT EXISTS user_likes (
			user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind      TEXT NOT NULL,
			target_id TEXT NOT NULL,
			PRIMARY KEY (user_id, kind, target_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user collection tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS achievements (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			points      INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
			criteria    TEXT NOT NULL DEFAULT '',
			icon_url    TEXT NOT NULL DEFAULT '',
			hidden      INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating achievements table: %w", err)
	}

	// Added after the first release: profile picture from social login.
	if err := db.addColumnIfNotExists("users", "avatar_url", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding avatar_url to users: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// withTx runs fn in a transaction, committing on nil and rolling back
// otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// utcNow is the store's timestamp source. Timestamps are stored in UTC so
// their text form sorts chronologically.
func utcNow() time.Time {
	return time.Now().UTC()
}

// nullableTime converts an optional timestamp to a driver value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullableInt converts an optional integer to a driver value.
func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
