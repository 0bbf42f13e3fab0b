package server

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("*")
	if err != nil {
		t.Fatalf("ParseSelector(*): %v", err)
	}
	if !sel.All {
		t.Fatalf("ParseSelector(*): expected All")
	}

	sel, err = ParseSelector("alice,bob,eve")
	if err != nil {
		t.Fatalf("ParseSelector(list): %v", err)
	}
	want := []string{"alice", "bob", "eve"}
	if diff := cmp.Diff(want, sel.Names); diff != "" {
		t.Fatalf("ParseSelector(list) mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "alice,", "al ice", "toolongusername", "b0b", "*,alice"} {
		if _, err := ParseSelector(bad); err == nil {
			t.Fatalf("ParseSelector(%q): expected error", bad)
		}
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Command
	}{
		{"admin grant", "ADMIN alice y", AdminCommand{Selector: Selector{Names: []string{"alice"}}, Grant: true}},
		{"admin revoke long flag", "ADMIN alice,bob No", AdminCommand{Selector: Selector{Names: []string{"alice", "bob"}}, Grant: false}},
		{"admin all", "ADMIN * yes", AdminCommand{Selector: Selector{All: true}, Grant: true}},
		{"admin trailing tokens ignored", "ADMIN alice y please", AdminCommand{Selector: Selector{Names: []string{"alice"}}, Grant: true}},
		{"pswd keeps raw remainder", "PSWD  hunter two ", PswdCommand{Password: " hunter two"}},
		{"pswd empty clears", "PSWD", PswdCommand{Password: ""}},
		{"kick", "KICK bob you know why", KickCommand{Selector: Selector{Names: []string{"bob"}}, Reason: "you know why"}},
		{"kick all", "KICK * maintenance", KickCommand{Selector: Selector{All: true}, Reason: "maintenance"}},
		{"notify", "NOTIFY server restarting soon", NotifyCommand{Message: "server restarting soon"}},
		{"tell", "TELL alice,bob check the channel", TellCommand{Selector: Selector{Names: []string{"alice", "bob"}}, Message: "check the channel"}},
		{"quit bare", "QUIT", QuitCommand{}},
		{"quit farewell", "QUIT goodbye all", QuitCommand{Message: "goodbye all"}},
		{"list", "LIST", ListCommand{}},
		{"help", "HELP", HelpCommand{}},
		{"leading whitespace", "  LIST  ", ListCommand{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCommand(tc.line)
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tc.line, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ParseCommand(%q) mismatch (-want +got):\n%s", tc.line, diff)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
		want error
	}{
		{"empty", "", ErrEmptyCommand},
		{"blank", "   ", ErrEmptyCommand},
		{"unknown keyword", "SHOUT everyone", ErrUnknownCommand},
		{"lowercase keyword", "list", ErrUnknownCommand},
		{"admin missing flag", "ADMIN alice", ErrBadArguments},
		{"admin bad flag", "ADMIN alice maybe", ErrBadArguments},
		{"admin bad selector", "ADMIN b0b y", ErrBadArguments},
		{"kick without reason", "KICK bob", ErrBadArguments},
		{"tell without message", "TELL bob", ErrBadArguments},
		{"notify without message", "NOTIFY   ", ErrBadArguments},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCommand(tc.line)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ParseCommand(%q): expected %v, got %v", tc.line, tc.want, err)
			}
		})
	}
}
