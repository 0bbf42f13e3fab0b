package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

// MemoryStore provides an in-memory DataStore implementation for tests.
// It mirrors SQLite behavior for validation and error handling.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	nextEventID int64
	admins      map[string]struct{}
	settings    map[string]string
	events      []model.Event
}

// Compile-time check: *MemoryStore implements DataStore.
var _ DataStore = (*MemoryStore)(nil)

// NewMemory creates a MemoryStore using time.Now().UTC().
func NewMemory() *MemoryStore {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock creates a MemoryStore with a custom clock.
func NewMemoryWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		now:         now,
		nextEventID: 1,
		admins:      make(map[string]struct{}),
		settings:    make(map[string]string),
	}
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// SetAdmin grants or revokes the persistent admin flag for a username.
func (s *MemoryStore) SetAdmin(username string, admin bool) error {
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("store: set admin: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin {
		s.admins[username] = struct{}{}
	} else {
		delete(s.admins, username)
	}
	return nil
}

// IsAdmin reports whether a username holds the persistent admin flag.
func (s *MemoryStore) IsAdmin(username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[username]
	return ok, nil
}

// ListAdmins returns all usernames with the admin flag, sorted.
func (s *MemoryStore) ListAdmins() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admins := make([]string, 0, len(s.admins))
	for name := range s.admins {
		admins = append(admins, name)
	}
	sort.Strings(admins)
	if len(admins) == 0 {
		return nil, nil
	}
	return admins, nil
}

// SaveSetting stores a key/value pair, replacing any previous value.
func (s *MemoryStore) SaveSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// GetSetting retrieves a setting value. Returns "" when the key is absent.
func (s *MemoryStore) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

// AppendEvent records one audit log entry.
func (s *MemoryStore) AppendEvent(kind model.EventKind, actor, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, model.Event{
		ID:        s.nextEventID,
		Kind:      kind,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: s.now().Truncate(time.Second),
	})
	s.nextEventID++
	return nil
}

// ListEvents returns up to limit entries, newest first.
func (s *MemoryStore) ListEvents(limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []model.Event
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, s.events[i])
	}
	return events, nil
}
