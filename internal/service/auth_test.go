package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulse-analytics/pulse/internal/db/testdb"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/repository"
	"github.com/pulse-analytics/pulse/internal/security"
)

type sentEmail struct {
	Kind  string
	To    string
	Name  string
	Token string
}

// memoryMailer records emails instead of sending them.
type memoryMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *memoryMailer) SendVerificationEmail(_ context.Context, to, name, token string) error {
	return m.record("verification", to, name, token)
}

func (m *memoryMailer) SendPasswordResetEmail(_ context.Context, to, name, token string) error {
	return m.record("password_reset", to, name, token)
}

func (m *memoryMailer) record(kind, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{Kind: kind, To: to, Name: name, Token: token})
	return nil
}

func (m *memoryMailer) last(t *testing.T, kind string) sentEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s email sent", kind)
	return sentEmail{}
}

func (m *memoryMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type authFixture struct {
	svc    *AuthService
	store  *repository.CredentialStore
	db     *sqlx.DB
	mailer *memoryMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	database := testdb.RunWhile(t)
	store := repository.NewCredentialStore(database, time.Second)

	hasher, err := security.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	codec, err := security.NewTokenCodec("test-secret", "HS256", "pulse", 15*time.Minute)
	require.NoError(t, err)

	mailer := &memoryMailer{}
	svc, err := NewAuthService(store, hasher, codec, mailer, nil, AuthConfig{
		RefreshTokenExpiry:       30 * 24 * time.Hour,
		TokenEmailVerifyExpiry:   24 * time.Hour,
		TokenPasswordResetExpiry: time.Hour,
		PasswordMinLength:        8,
		EmailTimeout:             time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Wait)

	return &authFixture{svc: svc, store: store, db: database, mailer: mailer}
}

// registerVerified registers alice@example.com and verifies the account.
func (f *authFixture) registerVerified(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	f.svc.Wait()

	require.NoError(t, f.svc.VerifyEmail(ctx, f.mailer.last(t, "verification").Token))
}

func (f *authFixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := f.svc.Register(ctx, RegisterInput{Name: "  Alice ", Email: " Alice@Example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "Passw0rd", user.PasswordHash)

	f.svc.Wait()
	sent := f.mailer.last(t, "verification")
	assert.Equal(t, "alice@example.com", sent.To)
	assert.Equal(t, "Alice", sent.Name)

	token, err := f.store.VerificationToken(ctx, sent.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, token.UserID)
	assert.WithinDuration(t, now.Add(24*time.Hour), token.ExpiresAt, time.Minute)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Mallory", Email: "ALICE@example.com", Password: "0therPass"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	f.svc.Wait()
	assert.Equal(t, 1, f.mailer.count())
	assert.Equal(t, 1, f.countRows(t, "users"))
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{"weak password", RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password"}, "password"},
		{"short password", RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Pa55"}, "password"},
		{"blank name", RegisterInput{Name: "   ", Email: "alice@example.com", Password: "Passw0rd"}, "name"},
		{"bad email", RegisterInput{Name: "Alice", Email: "alice", Password: "Passw0rd"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.input)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Equal(t, 0, f.countRows(t, "users"))
}

func TestRegisterEmailFailureIsNotFatal(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, 1, f.countRows(t, "users"))
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	f.svc.Wait()
	raw := f.mailer.last(t, "verification").Token

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "unknown"), ErrTokenNotFound)

	require.NoError(t, f.svc.VerifyEmail(ctx, raw))

	user, err := f.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	// Single use
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, raw), ErrTokenNotFound)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	f.svc.Wait()
	raw := f.mailer.last(t, "verification").Token

	f.svc.NowFunc = func() time.Time { return time.Now().Add(25 * time.Hour) }

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, raw), ErrTokenExpired)
	assert.Equal(t, 0, f.countRows(t, "email_verification_tokens"))

	user, err := f.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "Alice@Example.com", "Passw0rd")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, pair.RefreshToken, 64)

	user, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NotNil(t, user.LastLogin)

	// Only the hash of the refresh token is stored
	var stored string
	require.NoError(t, f.db.Get(&stored, "SELECT token_hash FROM refresh_tokens"))
	assert.Equal(t, security.HashToken(pair.RefreshToken), stored)
	assert.NotEqual(t, pair.RefreshToken, stored)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "alice@example.com", "wrong-Passw0rd")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@example.com", "Passw0rd")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := f.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(ctx, user.ID, false))

	_, err = f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	assert.ErrorIs(t, err, ErrAccountDisabled)

	// A disabled account with a wrong password still reads as bad credentials
	_, err = f.svc.Login(ctx, "alice@example.com", "wrong-Passw0rd")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, 0, f.countRows(t, "refresh_tokens"))
}

func TestLoginBeforeVerification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Equal(t, 0, f.countRows(t, "refresh_tokens"))
}

func TestRefreshRotates(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated token is spent
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefreshConcurrentUse(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	const attempts = 4
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	var active int
	require.NoError(t, f.db.Get(&active, "SELECT COUNT(*) FROM refresh_tokens WHERE revoked = FALSE"))
	assert.Equal(t, 1, active)
}

func TestRefreshExpired(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	f.svc.NowFunc = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

// orphanedStore loses every user, as if the row vanished after the refresh
// token was looked up.
type orphanedStore struct {
	*repository.CredentialStore
}

func (orphanedStore) UserByID(context.Context, string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

func TestRefreshUnknownUserCountsFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	hasher, err := security.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	codec, err := security.NewTokenCodec("test-secret", "HS256", "pulse", 15*time.Minute)
	require.NoError(t, err)

	metrics := NewMetricsService(nil)
	svc, err := NewAuthService(orphanedStore{f.store}, hasher, codec, f.mailer, metrics, AuthConfig{
		RefreshTokenExpiry: 30 * 24 * time.Hour,
		PasswordMinLength:  8,
	})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	assert.Equal(t, 1.0, authEventCount(t, metrics, "refresh", OutcomeFailure))
	assert.Equal(t, 0.0, authEventCount(t, metrics, "refresh", OutcomeSuccess))
}

func authEventCount(t *testing.T, metrics *MetricsService, event, outcome string) float64 {
	t.Helper()

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "auth_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["event"] == event && labels["outcome"] == outcome {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestRefreshDisabledAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	user, err := f.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(ctx, user.ID, false))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrAccountNotAccessible)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, "unknown"))
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResendVerification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "Passw0rd"})
	require.NoError(t, err)
	f.svc.Wait()
	old := f.mailer.last(t, "verification").Token

	require.NoError(t, f.svc.ResendVerification(ctx, "alice@example.com"))
	f.svc.Wait()
	fresh := f.mailer.last(t, "verification").Token
	assert.NotEqual(t, old, fresh)

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, old), ErrTokenNotFound)
	require.NoError(t, f.svc.VerifyEmail(ctx, fresh))

	// Verified and unknown accounts get nothing, silently
	sent := f.mailer.count()
	require.NoError(t, f.svc.ResendVerification(ctx, "alice@example.com"))
	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
	f.svc.Wait()
	assert.Equal(t, sent, f.mailer.count())
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	session, err := f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com"))
	f.svc.Wait()
	first := f.mailer.last(t, "password_reset").Token

	// A second request invalidates the first link
	require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com"))
	f.svc.Wait()
	raw := f.mailer.last(t, "password_reset").Token
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, first, "N3wPassword"), ErrTokenNotFound)

	var verr *ValidationError
	require.ErrorAs(t, f.svc.ResetPassword(ctx, raw, "weak"), &verr)

	require.NoError(t, f.svc.ResetPassword(ctx, raw, "N3wPassword"))

	// Every session ends
	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.svc.Login(ctx, "alice@example.com", "Passw0rd")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "alice@example.com", "N3wPassword")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, raw, "An0therPass"), ErrTokenNotFound)
}

func TestForgotPasswordUnknownOrDisabled(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()
	sent := f.mailer.count()

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))

	user, err := f.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(ctx, user.ID, false))
	require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com"))

	f.svc.Wait()
	assert.Equal(t, sent, f.mailer.count())
	assert.Equal(t, 0, f.countRows(t, "password_reset_tokens"))
}

func TestResetPasswordExpired(t *testing.T) {
	f := newAuthFixture(t)
	f.registerVerified(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "alice@example.com"))
	f.svc.Wait()
	raw := f.mailer.last(t, "password_reset").Token

	f.svc.NowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, raw, "N3wPassword"), ErrTokenExpired)
	assert.Equal(t, 0, f.countRows(t, "password_reset_tokens"))
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Well-formed token for a user that does not exist
	codec, err := security.NewTokenCodec("test-secret", "HS256", "pulse", 15*time.Minute)
	require.NoError(t, err)
	token, _, err := codec.Issue("ghost", "ghost@example.com")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
