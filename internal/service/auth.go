package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/repository"
	"github.com/pulse-analytics/pulse/internal/security"
	"github.com/pulse-analytics/pulse/internal/validation"
)

// CredentialStore is the persistence the auth flows need. Multi-row writes
// are atomic.
type CredentialStore interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateUserWithVerificationToken(ctx context.Context, user *model.User, token *model.EmailVerificationToken) error
	VerificationToken(ctx context.Context, token string) (*model.EmailVerificationToken, error)
	DeleteVerificationToken(ctx context.Context, id string) error
	VerifyEmail(ctx context.Context, token *model.EmailVerificationToken) error
	ReplaceVerificationToken(ctx context.Context, token *model.EmailVerificationToken) error

	StartSession(ctx context.Context, token *model.RefreshToken, loginAt time.Time) error
	ActiveRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldHash string, next *model.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	ReplaceResetToken(ctx context.Context, token *model.PasswordResetToken) error
	UnusedResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, id string) error
	ConsumeResetToken(ctx context.Context, token *model.PasswordResetToken, passwordHash string) error
}

// Mailer sends the account emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}

type AuthConfig struct {
	RefreshTokenExpiry       time.Duration
	TokenEmailVerifyExpiry   time.Duration
	TokenPasswordResetExpiry time.Duration
	PasswordMinLength        int
	// EmailTimeout bounds each background email delivery.
	EmailTimeout time.Duration
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type AuthService struct {
	store   CredentialStore
	hasher  *security.PasswordHasher
	codec   *security.TokenCodec
	mailer  Mailer
	metrics *MetricsService
	cfg     AuthConfig
	wg      *sync.WaitGroup

	// comparisonHash is verified against when no user was found, so a
	// login for an unknown email costs the same as a wrong password.
	comparisonHash string

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewAuthService(
	store CredentialStore,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	mailer Mailer,
	metrics *MetricsService,
	cfg AuthConfig,
) (*AuthService, error) {
	tok, err := security.GenerateToken()
	if err != nil {
		return nil, err
	}

	hash, err := hasher.Hash(tok)
	if err != nil {
		return nil, fmt.Errorf("create comparison hash: %w", err)
	}

	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = 10 * time.Second
	}

	return &AuthService{
		store:          store,
		hasher:         hasher,
		codec:          codec,
		mailer:         mailer,
		metrics:        metrics,
		cfg:            cfg,
		wg:             &sync.WaitGroup{},
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// Wait waits for all background email deliveries to finish.
func (s *AuthService) Wait() {
	s.wg.Wait()
}

func (s *AuthService) now() time.Time {
	return s.NowFunc().UTC()
}

// Register creates an unverified account and emails a verification link.
// The password is hashed before the store is touched so the duplicate and
// the fresh case take the same time. A taken email returns ErrDuplicateEmail.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := validation.NormalizeName(in.Name)
	email := validation.NormalizeEmail(in.Email)

	err := validation.ValidateName(name)
	if err != nil {
		return nil, newValidationError("name", err)
	}

	err = validation.ValidateEmail(email)
	if err != nil {
		return nil, newValidationError("email", err)
	}

	err = validation.ValidatePassword(in.Password, s.cfg.PasswordMinLength)
	if err != nil {
		return nil, newValidationError("password", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		IsVerified:   false,
		IsActive:     true,
		CreatedAt:    now,
	}

	token, err := s.newVerificationToken(user.ID, now)
	if err != nil {
		return nil, err
	}

	err = s.store.CreateUserWithVerificationToken(ctx, user, token)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthEvent("register", OutcomeFailure)
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	s.metrics.RecordAuthEvent("register", OutcomeSuccess)

	s.sendVerificationEmail(user, token.Token)

	return user, nil
}

// VerifyEmail consumes a verification token. An expired token is deleted.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	token, err := s.store.VerificationToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.metrics.RecordAuthEvent("verify_email", OutcomeFailure)
			return ErrTokenNotFound
		}
		return fmt.Errorf("get verification token: %w", err)
	}

	if token.IsExpired(s.now()) {
		err = s.store.DeleteVerificationToken(ctx, token.ID)
		if err != nil {
			return fmt.Errorf("delete expired verification token: %w", err)
		}
		s.metrics.RecordAuthEvent("verify_email", OutcomeFailure)
		return ErrTokenExpired
	}

	err = s.store.VerifyEmail(ctx, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	slog.Info("email verified", "user_id", token.UserID)
	s.metrics.RecordAuthEvent("verify_email", OutcomeSuccess)
	return nil
}

// Login checks the password and opens a session. Exactly one bcrypt
// comparison runs whether or not the account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		_ = s.hasher.Verify(password, s.comparisonHash)
		s.metrics.RecordAuthEvent("login", OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordAuthEvent("login", OutcomeFailure)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.metrics.RecordAuthEvent("login", OutcomeFailure)
		return nil, ErrAccountDisabled
	}

	if !user.IsVerified {
		s.metrics.RecordAuthEvent("login", OutcomeFailure)
		return nil, ErrEmailNotVerified
	}

	now := s.now()
	pair, refresh, err := s.issueTokens(user, now)
	if err != nil {
		return nil, err
	}

	err = s.store.StartSession(ctx, refresh, now)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	slog.Info("user logged in", "user_id", user.ID)
	s.metrics.RecordAuthEvent("login", OutcomeSuccess)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor, so it can be
// used once.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*model.TokenPair, error) {
	tokenHash := security.HashToken(rawToken)
	now := s.now()

	current, err := s.store.ActiveRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.metrics.RecordAuthEvent("refresh", OutcomeFailure)
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if !current.IsActive(now) {
		s.metrics.RecordAuthEvent("refresh", OutcomeFailure)
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.store.UserByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.RecordAuthEvent("refresh", OutcomeFailure)
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.CanAuthenticate() {
		s.metrics.RecordAuthEvent("refresh", OutcomeFailure)
		return nil, ErrAccountNotAccessible
	}

	pair, next, err := s.issueTokens(user, now)
	if err != nil {
		return nil, err
	}

	err = s.store.RotateRefreshToken(ctx, tokenHash, next)
	if err != nil {
		// Lost a race with a concurrent refresh or logout of the same token
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.metrics.RecordAuthEvent("refresh", OutcomeFailure)
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.metrics.RecordAuthEvent("refresh", OutcomeSuccess)
	return pair, nil
}

// Logout revokes the refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	err := s.store.RevokeRefreshToken(ctx, security.HashToken(rawToken))
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.metrics.RecordAuthEvent("logout", OutcomeSuccess)
	return nil
}

// ResendVerification replaces the outstanding verification tokens of an
// unverified account and sends a new link. Callers cannot tell from the
// result whether anything was sent.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("verification resend requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.IsVerified {
		return nil
	}

	token, err := s.newVerificationToken(user.ID, s.now())
	if err != nil {
		return err
	}

	err = s.store.ReplaceVerificationToken(ctx, token)
	if err != nil {
		return fmt.Errorf("replace verification token: %w", err)
	}

	s.metrics.RecordAuthEvent("resend_verification", OutcomeSuccess)
	s.sendVerificationEmail(user, token.Token)
	return nil
}

// ForgotPassword sends a reset link to an active account. Callers cannot tell
// from the result whether the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		slog.Info("password reset requested for disabled account", "user_id", user.ID)
		return nil
	}

	raw, err := security.GenerateToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	token := &model.PasswordResetToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     raw,
		ExpiresAt: now.Add(s.cfg.TokenPasswordResetExpiry),
		CreatedAt: now,
	}

	err = s.store.ReplaceResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("replace reset token: %w", err)
	}

	s.metrics.RecordAuthEvent("forgot_password", OutcomeSuccess)

	to, name := user.Email, user.Name
	s.dispatch("password_reset", func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, to, name, raw)
	})

	return nil
}

// ResetPassword sets a new password with a reset token and ends every
// session of the account.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password string) error {
	err := validation.ValidatePassword(password, s.cfg.PasswordMinLength)
	if err != nil {
		return newValidationError("password", err)
	}

	token, err := s.store.UnusedResetToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.metrics.RecordAuthEvent("reset_password", OutcomeFailure)
			return ErrTokenNotFound
		}
		return fmt.Errorf("get reset token: %w", err)
	}

	if token.IsExpired(s.now()) {
		err = s.store.DeleteResetToken(ctx, token.ID)
		if err != nil {
			return fmt.Errorf("delete expired reset token: %w", err)
		}
		s.metrics.RecordAuthEvent("reset_password", OutcomeFailure)
		return ErrTokenExpired
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.store.ConsumeResetToken(ctx, token, passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	slog.Info("password reset", "user_id", token.UserID)
	s.metrics.RecordAuthEvent("reset_password", OutcomeSuccess)
	return nil
}

// Authenticate resolves an access token to its user. Invalid tokens and
// deleted users return ErrUnauthenticated; account state is checked by the
// caller.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.store.UserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (s *AuthService) issueTokens(user *model.User, now time.Time) (*model.TokenPair, *model.RefreshToken, error) {
	access, _, err := s.codec.Issue(user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}

	raw, err := security.GenerateToken()
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh token: %w", err)
	}

	refresh := &model.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: now.Add(s.cfg.RefreshTokenExpiry),
		CreatedAt: now,
	}

	pair := &model.TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    model.TokenTypeBearer,
		ExpiresIn:    int64(s.codec.TTL().Seconds()),
	}

	return pair, refresh, nil
}

func (s *AuthService) newVerificationToken(userID string, now time.Time) (*model.EmailVerificationToken, error) {
	raw, err := security.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	return &model.EmailVerificationToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Token:     raw,
		ExpiresAt: now.Add(s.cfg.TokenEmailVerifyExpiry),
		CreatedAt: now,
	}, nil
}

func (s *AuthService) sendVerificationEmail(user *model.User, rawToken string) {
	to, name := user.Email, user.Name
	s.dispatch("verification", func(ctx context.Context) error {
		return s.mailer.SendVerificationEmail(ctx, to, name, rawToken)
	})
}

// dispatch delivers an email in the background. Failures are logged and
// never reach the caller of the triggering flow.
func (s *AuthService) dispatch(kind string, send func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EmailTimeout)
		defer cancel()

		err := send(ctx)
		if err != nil {
			slog.Error("failed to send email", "type", kind, "error", err)
			s.metrics.RecordEmailFailure(kind)
		}
	}()
}
