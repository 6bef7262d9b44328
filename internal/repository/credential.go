package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulse-analytics/pulse/internal/db"
	"github.com/pulse-analytics/pulse/internal/model"
)

// CredentialStore owns users and their tokens. Operations that touch more
// than one row run in a single transaction, so readers never see a user
// without a verification token or two live successors of one refresh token.
type CredentialStore struct {
	db      *sqlx.DB
	timeout time.Duration

	users        UserRepository
	verification VerificationTokenRepository
	refresh      RefreshTokenRepository
	reset        ResetTokenRepository
}

// PurgeResult counts the rows removed by DeleteExpiredTokens.
type PurgeResult struct {
	VerificationTokens int64
	RefreshTokens      int64
	ResetTokens        int64
}

func (p PurgeResult) Total() int64 {
	return p.VerificationTokens + p.RefreshTokens + p.ResetTokens
}

func NewCredentialStore(database *sqlx.DB, timeout time.Duration) *CredentialStore {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	return &CredentialStore{
		db:           database,
		timeout:      timeout,
		users:        NewUserRepository(database, timeout),
		verification: NewVerificationTokenRepository(database, timeout),
		refresh:      NewRefreshTokenRepository(database, timeout),
		reset:        NewResetTokenRepository(database, timeout),
	}
}

// txRepos are the table repositories bound to one transaction.
type txRepos struct {
	users        UserRepository
	verification VerificationTokenRepository
	refresh      RefreshTokenRepository
	reset        ResetTokenRepository
}

// inTx runs fn in a transaction bounded by the store timeout. Statements
// inside fn must only use the bound repositories.
func (s *CredentialStore) inTx(ctx context.Context, fn func(r txRepos) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(txRepos{
			users:        NewUserRepository(tx, 0),
			verification: NewVerificationTokenRepository(tx, 0),
			refresh:      NewRefreshTokenRepository(tx, 0),
			reset:        NewResetTokenRepository(tx, 0),
		})
	})
}

func (s *CredentialStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	return s.users.ByID(ctx, id)
}

func (s *CredentialStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.ByEmail(ctx, email)
}

func (s *CredentialStore) SetActive(ctx context.Context, userID string, active bool) error {
	return s.users.SetActive(ctx, userID, active)
}

func (s *CredentialStore) SetVerified(ctx context.Context, userID string, verified bool) error {
	return s.users.SetVerified(ctx, userID, verified)
}

// CreateUserWithVerificationToken inserts the user and its first verification
// token together. A taken email returns ErrDuplicateEmail and nothing is written.
func (s *CredentialStore) CreateUserWithVerificationToken(ctx context.Context, user *model.User, token *model.EmailVerificationToken) error {
	return s.inTx(ctx, func(r txRepos) error {
		err := r.users.Create(ctx, user)
		if err != nil {
			return err
		}

		err = r.verification.Create(ctx, token)
		if err != nil {
			return fmt.Errorf("create verification token: %w", err)
		}

		return nil
	})
}

func (s *CredentialStore) VerificationToken(ctx context.Context, token string) (*model.EmailVerificationToken, error) {
	return s.verification.ByToken(ctx, token)
}

func (s *CredentialStore) DeleteVerificationToken(ctx context.Context, id string) error {
	return s.verification.Delete(ctx, id)
}

// VerifyEmail marks the token's user verified and deletes the token.
func (s *CredentialStore) VerifyEmail(ctx context.Context, token *model.EmailVerificationToken) error {
	return s.inTx(ctx, func(r txRepos) error {
		err := r.users.SetVerified(ctx, token.UserID, true)
		if err != nil {
			return err
		}

		return r.verification.Delete(ctx, token.ID)
	})
}

// ReplaceVerificationToken drops every outstanding verification token of the
// user and stores the new one.
func (s *CredentialStore) ReplaceVerificationToken(ctx context.Context, token *model.EmailVerificationToken) error {
	return s.inTx(ctx, func(r txRepos) error {
		err := r.verification.DeleteByUser(ctx, token.UserID)
		if err != nil {
			return err
		}

		return r.verification.Create(ctx, token)
	})
}

// StartSession stores the refresh token of a fresh login and records the
// login time.
func (s *CredentialStore) StartSession(ctx context.Context, token *model.RefreshToken, loginAt time.Time) error {
	return s.inTx(ctx, func(r txRepos) error {
		err := r.refresh.Create(ctx, token)
		if err != nil {
			return err
		}

		return r.users.UpdateLastLogin(ctx, token.UserID, loginAt)
	})
}

func (s *CredentialStore) ActiveRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	return s.refresh.ActiveByHash(ctx, tokenHash)
}

// RotateRefreshToken revokes the active row for oldHash and stores next.
// If the row was already revoked, by a concurrent refresh or a logout,
// it returns ErrTokenNotFound and next is not stored.
func (s *CredentialStore) RotateRefreshToken(ctx context.Context, oldHash string, next *model.RefreshToken) error {
	return s.inTx(ctx, func(r txRepos) error {
		revoked, err := r.refresh.Revoke(ctx, oldHash)
		if err != nil {
			return err
		}
		if !revoked {
			return ErrTokenNotFound
		}

		return r.refresh.Create(ctx, next)
	})
}

// RevokeRefreshToken revokes the row if it is still active. Unknown hashes
// are not an error.
func (s *CredentialStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.refresh.Revoke(ctx, tokenHash)
	return err
}

// ReplaceResetToken drops the user's unused reset tokens and stores the new one.
func (s *CredentialStore) ReplaceResetToken(ctx context.Context, token *model.PasswordResetToken) error {
	return s.inTx(ctx, func(r txRepos) error {
		err := r.reset.DeleteUnusedByUser(ctx, token.UserID)
		if err != nil {
			return err
		}

		return r.reset.Create(ctx, token)
	})
}

func (s *CredentialStore) UnusedResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	return s.reset.UnusedByToken(ctx, token)
}

func (s *CredentialStore) DeleteResetToken(ctx context.Context, id string) error {
	return s.reset.Delete(ctx, id)
}

// ConsumeResetToken marks the token used, sets the new password hash and
// revokes every refresh token of the user. A token consumed concurrently
// returns ErrTokenNotFound.
func (s *CredentialStore) ConsumeResetToken(ctx context.Context, token *model.PasswordResetToken, passwordHash string) error {
	return s.inTx(ctx, func(r txRepos) error {
		consumed, err := r.reset.MarkUsed(ctx, token.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrTokenNotFound
		}

		err = r.users.UpdatePassword(ctx, token.UserID, passwordHash)
		if err != nil {
			return err
		}

		return r.refresh.RevokeAllForUser(ctx, token.UserID)
	})
}

// DeleteExpiredTokens removes verification tokens that expired before the
// cutoff, and refresh and reset tokens that expired or were spent.
func (s *CredentialStore) DeleteExpiredTokens(ctx context.Context, before time.Time) (PurgeResult, error) {
	var result PurgeResult

	err := s.inTx(ctx, func(r txRepos) error {
		var err error

		result.VerificationTokens, err = r.verification.DeleteExpired(ctx, before)
		if err != nil {
			return fmt.Errorf("purge verification tokens: %w", err)
		}

		result.RefreshTokens, err = r.refresh.DeleteStale(ctx, before)
		if err != nil {
			return fmt.Errorf("purge refresh tokens: %w", err)
		}

		result.ResetTokens, err = r.reset.DeleteStale(ctx, before)
		if err != nil {
			return fmt.Errorf("purge reset tokens: %w", err)
		}

		return nil
	})
	if err != nil {
		return PurgeResult{}, err
	}

	return result, nil
}
