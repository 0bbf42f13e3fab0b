package server

import (
	"testing"

	"github.com/NicolasHaas/gotalk/pkg/store"
)

func registrySession(srv *Server, username string) *Session {
	s := newSession(srv, &nopConn{})
	s.mu.Lock()
	s.username = username
	s.mu.Unlock()
	return s
}

func TestRegistryRegisterCollision(t *testing.T) {
	srv := New(DefaultConfig(), Dependencies{Store: store.NewMemory()})
	reg := srv.Registry()

	first := registrySession(srv, "alice")
	if err := reg.Register(first); err != nil {
		t.Fatalf("Register: %v", err)
	}

	second := registrySession(srv, "alice")
	if err := reg.Register(second); err != ErrUsernameTaken {
		t.Fatalf("Register duplicate: expected ErrUsernameTaken, got %v", err)
	}

	// Unregister by the loser must not evict the winner.
	reg.Unregister(second)
	if got := reg.Get("alice"); got != first {
		t.Fatalf("Get after loser unregister: expected winner, got %v", got)
	}

	reg.Unregister(first)
	if reg.Count() != 0 {
		t.Fatalf("Count after unregister: expected 0, got %d", reg.Count())
	}
}

func TestRegistryResolve(t *testing.T) {
	srv := New(DefaultConfig(), Dependencies{Store: store.NewMemory()})
	reg := srv.Registry()

	for _, name := range []string{"carol", "alice", "bob"} {
		if err := reg.Register(registrySession(srv, name)); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	all := reg.Resolve(Selector{All: true})
	if len(all) != 3 {
		t.Fatalf("Resolve(*): expected 3 sessions, got %d", len(all))
	}

	some := reg.Resolve(Selector{Names: []string{"bob", "ghost", "alice"}})
	if len(some) != 2 {
		t.Fatalf("Resolve(names): expected unmatched names dropped, got %d sessions", len(some))
	}

	none := reg.Resolve(Selector{Names: []string{"ghost"}})
	if len(none) != 0 {
		t.Fatalf("Resolve(ghost): expected empty, got %d", len(none))
	}
}

func TestRegistrySnapshotOrder(t *testing.T) {
	srv := New(DefaultConfig(), Dependencies{Store: store.NewMemory()})
	reg := srv.Registry()

	for _, name := range []string{"carol", "alice", "bob"} {
		if err := reg.Register(registrySession(srv, name)); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	snap := reg.Snapshot()
	want := []string{"alice", "bob", "carol"}
	for i, s := range snap {
		if s.Username() != want[i] {
			t.Fatalf("Snapshot[%d]: expected %s, got %s", i, want[i], s.Username())
		}
	}
}
