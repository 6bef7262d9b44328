package validation

import (
	"errors"
	"fmt"
	"unicode"
)

// MaxPasswordBytes is the longest password bcrypt hashes without truncating.
const MaxPasswordBytes = 72

// ValidatePassword validates password strength.
// Passwords need minLength characters, an uppercase letter and a digit.
func ValidatePassword(password string, minLength int) error {
	if len([]rune(password)) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}

	// bcrypt silently truncates passwords longer than 72 bytes
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}

	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least one digit")
	}

	return nil
}
