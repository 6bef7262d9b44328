package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength is the longest display name accepted, in characters.
const MaxNameLength = 100

// NormalizeName trims the name and converts it to NFC so visually identical
// names are stored identically.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateName validates a display name
func ValidateName(name string) error {
	trimmed := NormalizeName(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}

	if strings.ContainsFunc(trimmed, unicode.IsControl) {
		return errors.New("name must not contain control characters")
	}

	return nil
}
