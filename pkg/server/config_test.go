package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gotalk.yaml")
	data := []byte("addr: \"127.0.0.1:9000\"\npassword: sesame\nlog_level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("Addr: got %q", cfg.Addr)
	}
	if cfg.Password != "sesame" {
		t.Fatalf("Password: got %q", cfg.Password)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel: got %q", cfg.LogLevel)
	}
	// Unset keys keep their defaults.
	if cfg.DBPath != "gotalk.db" {
		t.Fatalf("DBPath default: got %q", cfg.DBPath)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("LoadConfig: expected error for missing file")
	}
}

func TestPasswordVault(t *testing.T) {
	var v passwordVault

	if !v.Verify("anything") {
		t.Fatalf("empty vault must accept any candidate")
	}

	cleared, err := v.Set("  sesame  ")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cleared {
		t.Fatalf("Set: unexpected cleared")
	}
	if !v.Required() {
		t.Fatalf("Required: expected true after Set")
	}
	if !v.Verify("sesame") {
		t.Fatalf("trimmed password must verify")
	}
	if v.Verify("  sesame  ") {
		t.Fatalf("candidate is compared untrimmed")
	}

	cleared, err = v.Set("   ")
	if err != nil {
		t.Fatalf("Set blank: %v", err)
	}
	if !cleared {
		t.Fatalf("Set blank: expected cleared")
	}
	if v.Required() {
		t.Fatalf("Required: expected false after clear")
	}
}
