package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-analytics/pulse/internal/config"
	"github.com/pulse-analytics/pulse/internal/db/testdb"
	"github.com/pulse-analytics/pulse/internal/model"
	"github.com/pulse-analytics/pulse/internal/repository"
)

func useTestDatabase(t *testing.T) *repository.CredentialStore {
	t.Helper()
	conn := testdb.RunWhile(t)

	original := openDatabase
	openDatabase = func() (*database, error) {
		cfg := &config.Config{DBDriver: "sqlite", DBQueryTimeout: time.Second}
		return &database{DB: conn, cfg: cfg, close: func() error { return nil }}, nil
	}
	t.Cleanup(func() { openDatabase = original })

	return repository.NewCredentialStore(conn, time.Second)
}

func execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func createUser(t *testing.T, store *repository.CredentialStore, email string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	user := &model.User{ID: uuid.New().String(), Name: "Ada", Email: email, PasswordHash: "x", IsActive: true, CreatedAt: now}
	token := &model.EmailVerificationToken{ID: uuid.New().String(), UserID: user.ID, Token: uuid.New().String(), ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, store.CreateUserWithVerificationToken(context.Background(), user, token))
	return user
}

func TestUserCommands(t *testing.T) {
	store := useTestDatabase(t)
	user := createUser(t, store, "ada@example.com")
	ctx := context.Background()

	out, err := execute(t, UserCmd(), "verify", "  ADA@example.com ")
	require.NoError(t, err)
	assert.Contains(t, out, "verify: ada@example.com")

	got, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)

	_, err = execute(t, UserCmd(), "disable", "ada@example.com")
	require.NoError(t, err)
	got, err = store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = execute(t, UserCmd(), "enable", "ada@example.com")
	require.NoError(t, err)
	got, err = store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	_, err = execute(t, UserCmd(), "disable", "nobody@example.com")
	assert.ErrorContains(t, err, "no user with email nobody@example.com")

	_, err = execute(t, UserCmd(), "disable")
	assert.Error(t, err)
}

func TestTokensPurge(t *testing.T) {
	store := useTestDatabase(t)
	createUser(t, store, "ada@example.com")

	out, err := execute(t, TokensCmd(), "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 tokens (verification 1, refresh 0, reset 0)")
}

func TestMigrateStatus(t *testing.T) {
	useTestDatabase(t)

	out, err := execute(t, MigrateCmd(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version: 3")
}
