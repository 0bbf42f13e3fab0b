package store

import "github.com/NicolasHaas/gotalk/pkg/model"

// DataStore defines the persistence interface for server state that must
// survive restarts. Implementations include the default SQLite store and an
// in-memory store for testing.
//
// Chat message content is deliberately absent: the server never persists,
// replays, or exposes message history.
type DataStore interface {
	// Close closes the underlying storage connection.
	Close() error

	// ---- Admin flags ----

	// SetAdmin grants or revokes the persistent admin flag for a username.
	SetAdmin(username string, admin bool) error

	// IsAdmin reports whether a username holds the persistent admin flag.
	IsAdmin(username string) (bool, error)

	// ListAdmins returns all usernames with the admin flag, sorted.
	ListAdmins() ([]string, error)

	// ---- Settings ----

	// SaveSetting stores a key/value pair, replacing any previous value.
	SaveSetting(key, value string) error

	// GetSetting retrieves a setting value. Returns "" when the key is absent.
	GetSetting(key string) (string, error)

	// ---- Audit log ----

	// AppendEvent records one audit log entry.
	AppendEvent(kind model.EventKind, actor, detail string) error

	// ListEvents returns up to limit entries, newest first.
	ListEvents(limit int) ([]model.Event, error)
}
