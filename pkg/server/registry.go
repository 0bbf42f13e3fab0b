package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/NicolasHaas/gotalk/pkg/protocol"
)

// ErrUsernameTaken reports a registration attempt for a name already held
// by a live session.
var ErrUsernameTaken = errors.New("server: username has already been taken")

// Registry is the shared collection of handshake-completed sessions, keyed
// by username. Registration, de-registration, and send-iteration are
// mutually exclusive under one RWMutex: a broadcast never observes a
// partially updated membership, and concurrent registrations for the same
// name resolve to exactly one winner.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register inserts a session under its username. The check and insert are
// one atomic step; on collision nothing is mutated and ErrUsernameTaken is
// returned.
func (r *Registry) Register(s *Session) error {
	name := s.Username()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[name]; ok {
		return ErrUsernameTaken
	}
	r.sessions[name] = s
	return nil
}

// Unregister removes a session if it is the one registered under its
// username; no-op otherwise.
func (r *Registry) Unregister(s *Session) {
	name := s.Username()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[name] == s {
		delete(r.sessions, name)
	}
}

// Get returns the session registered under a username, or nil.
func (r *Registry) Get(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[username]
}

// Resolve returns the sessions matched by a parsed selector. Names with no
// registered session are silently dropped; an all-unmatched selector yields
// an empty result.
func (r *Registry) Resolve(sel Selector) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sel.All {
		return r.snapshotLocked()
	}
	matched := make([]*Session, 0, len(sel.Names))
	for _, name := range sel.Names {
		if s, ok := r.sessions[name]; ok {
			matched = append(matched, s)
		}
	}
	return matched
}

// BroadcastExcept delivers a message to every registered session other than
// sender. Sender may be nil to reach everyone.
func (r *Registry) BroadcastExcept(sender *Session, msg protocol.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s == sender {
			continue
		}
		s.Send(msg)
	}
}

// SendTo delivers a message to exactly the given sessions.
func (r *Registry) SendTo(sessions []*Session, msg protocol.Message) {
	for _, s := range sessions {
		s.Send(msg)
	}
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns all registered sessions sorted by username, so listings
// come out in a deterministic order.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []*Session {
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username() < result[j].Username()
	})
	return result
}
