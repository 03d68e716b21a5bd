// Package store persists portal data in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration
)

var (
	// ErrNotFound is returned when a row doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique value is already taken.
	ErrDuplicate = errors.New("already exists")
)

// timeFormat sorts lexically in time order, unlike RFC3339Nano which trims
// trailing zeros.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides access to the portal database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS profiles (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL,
			password_hash BLOB NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			role    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS membership_applications (
			id               TEXT PRIMARY KEY,
			user_id          TEXT,
			membership_type  TEXT NOT NULL,
			full_name        TEXT NOT NULL,
			email            TEXT NOT NULL,
			phone            TEXT,
			profession       TEXT NOT NULL,
			organization     TEXT,
			experience_years INTEGER,
			motivation       TEXT NOT NULL,
			status           TEXT NOT NULL,
			created_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_applications_status ON membership_applications(status);

		CREATE TABLE IF NOT EXISTS advertisements (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			image_url  TEXT,
			is_active  INTEGER NOT NULL,
			priority   INTEGER NOT NULL,
			created_by TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS activity_logs (
			id          TEXT PRIMARY KEY,
			user_id     TEXT,
			action      TEXT NOT NULL,
			description TEXT,
			metadata    TEXT,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_logs(action);
		CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_logs(created_at);

		CREATE TABLE IF NOT EXISTS contact_messages (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL,
			phone      TEXT,
			message    TEXT NOT NULL,
			is_read    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
	`)
	return err
}

func newID() string {
	return uuid.New().String()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// expectOne turns a zero-row update into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
