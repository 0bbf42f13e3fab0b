// Package crypto provides password hashing for the shared server password.
//
// The password is kept at rest as an argon2id hash so that a persisted server
// configuration never contains the plaintext. Verification derives the
// candidate with the stored salt and compares in constant time.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("crypto: malformed password hash")

const (
	saltLen      = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	hashPrefix = "argon2id"
)

// HashPassword hashes a password with argon2id and a random salt.
// The result is a self-contained encoded string: "argon2id$<salt>$<key>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return strings.Join([]string{
		hashPrefix,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// VerifyPassword reports whether candidate matches an encoded hash produced
// by HashPassword. The comparison is constant time in the derived key.
func VerifyPassword(encoded, candidate string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != hashPrefix {
		return false, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	derived := argon2.IDKey([]byte(candidate), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	if len(derived) != len(key) {
		return false, ErrMalformedHash
	}
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}
