// Package model defines the core domain types for GoTalk.
package model

import (
	"errors"
	"fmt"
)

const MaxUsernameLength = 10

var ErrUsernameEmpty = errors.New("username must not be empty")
var ErrUsernameTooLong = fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
var ErrUsernameInvalidChars = errors.New("username must contain only letters or underscores")

// ValidateUsername checks that a username is 1-10 ASCII letters or underscores.
// Returns nil on success or a descriptive error.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && r != '_' {
			return ErrUsernameInvalidChars
		}
	}
	return nil
}
