package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/gotalk/pkg/crypto"
)

// Config holds server configuration.
type Config struct {
	Addr        string `yaml:"addr"`         // TCP bind address (e.g. ":58755")
	Password    string `yaml:"password"`     // initial server password, empty = auth disabled
	DBPath      string `yaml:"db_path"`      // SQLite database path
	MetricsAddr string `yaml:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)
	LogLevel    string `yaml:"log_level"`    // consumed by cmd/server
	LogFormat   string `yaml:"log_format"`   // consumed by cmd/server
	LogDir      string `yaml:"log_dir"`      // directory for timestamped log files (empty = stdout only)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:   ":58755",
		DBPath: "gotalk.db",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config: %w", err)
	}
	return cfg, nil
}

// passwordVault holds the server password as an argon2id hash. Handshakes
// read it and the PSWD command writes it, so all access goes through one
// RWMutex; a password change can never interleave torn with an in-flight
// verification.
type passwordVault struct {
	mu   sync.RWMutex
	hash string // encoded hash, empty = authentication disabled
}

// Set trims the raw password and stores its hash. Trimming happens here and
// nowhere else; an empty string after trimming disables authentication.
// Reports whether authentication is now disabled.
func (v *passwordVault) Set(raw string) (cleared bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		v.mu.Lock()
		v.hash = ""
		v.mu.Unlock()
		return true, nil
	}
	encoded, err := crypto.HashPassword(trimmed)
	if err != nil {
		return false, err
	}
	v.mu.Lock()
	v.hash = encoded
	v.mu.Unlock()
	return false, nil
}

// SetEncoded restores a previously persisted hash (e.g. on startup).
func (v *passwordVault) SetEncoded(encoded string) {
	v.mu.Lock()
	v.hash = encoded
	v.mu.Unlock()
}

// Encoded returns the current hash for persistence, "" when disabled.
func (v *passwordVault) Encoded() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hash
}

// Required reports whether a password is currently set.
func (v *passwordVault) Required() bool {
	return v.Encoded() != ""
}

// Verify reports whether candidate unlocks the server. Always true when no
// password is set. The candidate is compared untrimmed.
func (v *passwordVault) Verify(candidate string) bool {
	encoded := v.Encoded()
	if encoded == "" {
		return true
	}
	ok, err := crypto.VerifyPassword(encoded, candidate)
	if err != nil {
		slog.Error("password hash unreadable, rejecting handshake", "err", err)
		return false
	}
	return ok
}
