// Package store provides SQLite-backed persistence for admin flags, server
// settings, and the audit log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// SettingPasswordHash is the settings key under which the hashed server
// password is persisted.
const SettingPasswordHash = "password_hash"

// Store provides database access for persistent GoTalk state.
type Store struct {
	db *sql.DB
}

// Compile-time check: *Store implements DataStore.
var _ DataStore = (*Store)(nil)

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS admins (
		username   TEXT PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 10),
		granted_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		actor      TEXT NOT NULL,
		detail     TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.Parse(dbTimeLayout, value)
}

// SetAdmin grants or revokes the persistent admin flag for a username.
func (s *Store) SetAdmin(username string, admin bool) error {
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("store: set admin: %w", err)
	}
	ctx := context.Background()
	if admin {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO admins (username, granted_at) VALUES (?, ?)
			 ON CONFLICT(username) DO NOTHING`,
			username, formatDBTime(time.Now()))
		if err != nil {
			return fmt.Errorf("store: set admin: %w", err)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE username = ?`, username); err != nil {
		return fmt.Errorf("store: revoke admin: %w", err)
	}
	return nil
}

// IsAdmin reports whether a username holds the persistent admin flag.
func (s *Store) IsAdmin(username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT 1 FROM admins WHERE username = ?`, username).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: is admin: %w", err)
	}
	return true, nil
}

// ListAdmins returns all usernames with the admin flag, sorted.
func (s *Store) ListAdmins() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT username FROM admins ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("store: list admins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var admins []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: list admins: %w", err)
		}
		admins = append(admins, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list admins: %w", err)
	}
	return admins, nil
}

// SaveSetting stores a key/value pair, replacing any previous value.
func (s *Store) SaveSetting(key, value string) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("store: save setting: %w", err)
	}
	return nil
}

// GetSetting retrieves a setting value. Returns "" when the key is absent.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get setting: %w", err)
	}
	return value, nil
}

// AppendEvent records one audit log entry.
func (s *Store) AppendEvent(kind model.EventKind, actor, detail string) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (kind, actor, detail, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), actor, detail, formatDBTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit entries, newest first.
func (s *Store) ListEvents(limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, kind, actor, detail, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var kind, created string
		if err := rows.Scan(&ev.ID, &kind, &ev.Actor, &ev.Detail, &created); err != nil {
			return nil, fmt.Errorf("store: list events: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		if ev.CreatedAt, err = parseDBTime(created); err != nil {
			return nil, fmt.Errorf("store: list events: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	return events, nil
}
