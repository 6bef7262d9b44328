package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pulse-analytics/pulse/internal/model"
)

var ErrTokenNotFound = errors.New("token not found")

type VerificationTokenRepository interface {
	Create(ctx context.Context, token *model.EmailVerificationToken) error
	ByToken(ctx context.Context, token string) (*model.EmailVerificationToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type verificationTokenRepository struct {
	q querier
}

func NewVerificationTokenRepository(ext sqlx.ExtContext, timeout time.Duration) VerificationTokenRepository {
	return &verificationTokenRepository{q: querier{db: ext, timeout: timeout}}
}

func (r *verificationTokenRepository) Create(ctx context.Context, token *model.EmailVerificationToken) error {
	query := `INSERT INTO email_verification_tokens (id, user_id, token, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.q.exec(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt)
	return err
}

func (r *verificationTokenRepository) ByToken(ctx context.Context, token string) (*model.EmailVerificationToken, error) {
	t := &model.EmailVerificationToken{}
	query := `SELECT * FROM email_verification_tokens WHERE token = $1`

	err := r.q.get(ctx, t, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (r *verificationTokenRepository) Delete(ctx context.Context, id string) error {
	_, err := r.q.exec(ctx, `DELETE FROM email_verification_tokens WHERE id = $1`, id)
	return err
}

func (r *verificationTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM email_verification_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *verificationTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.q.exec(ctx, `DELETE FROM email_verification_tokens WHERE expires_at < $1`, before)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	ActiveByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	q querier
}

func NewRefreshTokenRepository(ext sqlx.ExtContext, timeout time.Duration) RefreshTokenRepository {
	return &refreshTokenRepository{q: querier{db: ext, timeout: timeout}}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.q.exec(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.Revoked)
	return err
}

// ActiveByHash returns the unrevoked row for the hash. Expiry is left to the
// caller so it can be judged against the caller's clock.
func (r *refreshTokenRepository) ActiveByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	t := &model.RefreshToken{}
	query := `SELECT * FROM refresh_tokens WHERE token_hash = $1 AND revoked = FALSE`

	err := r.q.get(ctx, t, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Revoke marks the row revoked and reports whether this call did it.
// Only one of two concurrent calls for the same hash sees true.
func (r *refreshTokenRepository) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	rows, err := r.q.exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND revoked = FALSE`, tokenHash)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	return err
}

func (r *refreshTokenRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return r.q.exec(ctx, `DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at < $1`, before)
}

type ResetTokenRepository interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	UnusedByToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteUnusedByUser(ctx context.Context, userID string) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type resetTokenRepository struct {
	q querier
}

func NewResetTokenRepository(ext sqlx.ExtContext, timeout time.Duration) ResetTokenRepository {
	return &resetTokenRepository{q: querier{db: ext, timeout: timeout}}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	query := `INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at, used)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.q.exec(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.Used)
	return err
}

func (r *resetTokenRepository) UnusedByToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	t := &model.PasswordResetToken{}
	query := `SELECT * FROM password_reset_tokens WHERE token = $1 AND used = FALSE`

	err := r.q.get(ctx, t, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// MarkUsed consumes the token. Only the first of two concurrent calls sees true.
func (r *resetTokenRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	rows, err := r.q.exec(ctx, `UPDATE password_reset_tokens SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *resetTokenRepository) Delete(ctx context.Context, id string) error {
	_, err := r.q.exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, id)
	return err
}

func (r *resetTokenRepository) DeleteUnusedByUser(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1 AND used = FALSE`, userID)
	return err
}

func (r *resetTokenRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return r.q.exec(ctx, `DELETE FROM password_reset_tokens WHERE used = TRUE OR expires_at < $1`, before)
}
