package store_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/gotalk/pkg/model"
	"github.com/NicolasHaas/gotalk/pkg/store"
)

// withStores runs the same test body against both the SQLite and in-memory
// implementations so behavior cannot drift between them.
func withStores(t *testing.T, fn func(t *testing.T, st store.DataStore)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		st, err := store.New(dbPath)
		if err != nil {
			t.Fatalf("store.New: unexpected error: %v", err)
		}
		t.Cleanup(func() {
			if err := st.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		fn(t, st)
	})

	t.Run("memory", func(t *testing.T) {
		st := store.NewMemory()
		fn(t, st)
	})
}

func TestAdminFlags(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		ok, err := st.IsAdmin("alice")
		if err != nil {
			t.Fatalf("IsAdmin: unexpected error: %v", err)
		}
		if ok {
			t.Fatalf("IsAdmin: expected false before grant")
		}

		for _, name := range []string{"bob", "alice"} {
			if err := st.SetAdmin(name, true); err != nil {
				t.Fatalf("SetAdmin(%q): unexpected error: %v", name, err)
			}
		}
		// Granting twice must not error or duplicate.
		if err := st.SetAdmin("alice", true); err != nil {
			t.Fatalf("SetAdmin repeat: unexpected error: %v", err)
		}

		admins, err := st.ListAdmins()
		if err != nil {
			t.Fatalf("ListAdmins: unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"alice", "bob"}, admins); diff != "" {
			t.Fatalf("ListAdmins mismatch (-want +got):\n%s", diff)
		}

		if err := st.SetAdmin("alice", false); err != nil {
			t.Fatalf("SetAdmin revoke: unexpected error: %v", err)
		}
		ok, err = st.IsAdmin("alice")
		if err != nil || ok {
			t.Fatalf("IsAdmin after revoke: want false, got ok=%t err=%v", ok, err)
		}
		// Revoking a name that was never granted is a no-op.
		if err := st.SetAdmin("carol", false); err != nil {
			t.Fatalf("SetAdmin no-op revoke: unexpected error: %v", err)
		}
	})
}

func TestSetAdminRejectsBadUsername(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		if err := st.SetAdmin("not a name!", true); err == nil {
			t.Fatalf("SetAdmin: expected validation error for bad username")
		}
	})
}

func TestSettings(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		value, err := st.GetSetting(store.SettingPasswordHash)
		if err != nil {
			t.Fatalf("GetSetting: unexpected error: %v", err)
		}
		if value != "" {
			t.Fatalf("GetSetting: expected empty value for absent key, got %q", value)
		}

		if err := st.SaveSetting(store.SettingPasswordHash, "first"); err != nil {
			t.Fatalf("SaveSetting: unexpected error: %v", err)
		}
		if err := st.SaveSetting(store.SettingPasswordHash, "second"); err != nil {
			t.Fatalf("SaveSetting overwrite: unexpected error: %v", err)
		}
		value, err = st.GetSetting(store.SettingPasswordHash)
		if err != nil {
			t.Fatalf("GetSetting: unexpected error: %v", err)
		}
		if value != "second" {
			t.Fatalf("GetSetting: want %q got %q", "second", value)
		}
	})
}

func TestAuditLog(t *testing.T) {
	withStores(t, func(t *testing.T, st store.DataStore) {
		events, err := st.ListEvents(10)
		if err != nil {
			t.Fatalf("ListEvents: unexpected error: %v", err)
		}
		if len(events) != 0 {
			t.Fatalf("ListEvents: expected empty log, got %d entries", len(events))
		}

		entries := []struct {
			kind   model.EventKind
			actor  string
			detail string
		}{
			{model.EventConnect, "alice", "127.0.0.1:51000"},
			{model.EventCommand, "console", "KICK"},
			{model.EventKick, "alice", "spamming"},
		}
		for _, e := range entries {
			if err := st.AppendEvent(e.kind, e.actor, e.detail); err != nil {
				t.Fatalf("AppendEvent: unexpected error: %v", err)
			}
		}

		events, err = st.ListEvents(2)
		if err != nil {
			t.Fatalf("ListEvents: unexpected error: %v", err)
		}
		want := []model.Event{
			{Kind: model.EventKick, Actor: "alice", Detail: "spamming"},
			{Kind: model.EventCommand, Actor: "console", Detail: "KICK"},
		}
		ignore := cmpopts.IgnoreFields(model.Event{}, "ID", "CreatedAt")
		if diff := cmp.Diff(want, events, ignore); diff != "" {
			t.Fatalf("ListEvents mismatch (-want +got):\n%s", diff)
		}
		for _, ev := range events {
			if ev.ID == 0 || ev.CreatedAt.IsZero() {
				t.Fatalf("ListEvents: entry missing ID or timestamp: %+v", ev)
			}
		}
	})
}
