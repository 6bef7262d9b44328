package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEmail        = errors.New("an account with this email already exists")
	ErrInvalidCredentials    = errors.New("incorrect email or password")
	ErrAccountDisabled       = errors.New("account is disabled")
	ErrEmailNotVerified      = errors.New("please verify your email before logging in")
	ErrTokenNotFound         = errors.New("invalid or already used link")
	ErrTokenExpired          = errors.New("link has expired, please request a new one")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")
	ErrUnauthenticated       = errors.New("could not validate credentials")
	ErrNotFound              = errors.New("not found")

	// ErrAccountNotAccessible is returned by Refresh for a valid token whose
	// account was disabled or is unverified. It matches ErrInvalidOrExpiredToken.
	ErrAccountNotAccessible = fmt.Errorf("account is not accessible: %w", ErrInvalidOrExpiredToken)
)

// ValidationError is malformed user input. Message is safe to show to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error()}
}
