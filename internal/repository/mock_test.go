package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-analytics/pulse/internal/model"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var userColumns = []string{"id", "name", "email", "password_hash", "is_verified", "is_active", "created_at", "last_login"}

func TestUserRepositoryByEmail(t *testing.T) {
	database, mock := newRepoMock(t)
	repo := NewUserRepository(database, time.Second)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE email = $1")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "Alice", "alice@example.com", "hash", true, true, created, nil))

	user, err := repo.ByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.True(t, user.CanAuthenticate())
	assert.Nil(t, user.LastLogin)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE email = $1")).
		WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err = repo.ByEmail(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateMissing(t *testing.T) {
	database, mock := newRepoMock(t)
	repo := NewUserRepository(database, time.Second)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_active = $1 WHERE id = $2")).
		WithArgs(false, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStoreDuplicateEmailRollsBack(t *testing.T) {
	database, mock := newRepoMock(t)
	store := NewCredentialStore(database, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := store.CreateUserWithVerificationToken(context.Background(),
		&model.User{ID: "u-1", Email: "alice@example.com"},
		&model.EmailVerificationToken{ID: "t-1", UserID: "u-1", Token: "abc"},
	)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStoreCreateUserTokenFailureRollsBack(t *testing.T) {
	database, mock := newRepoMock(t)
	store := NewCredentialStore(database, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_verification_tokens")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.CreateUserWithVerificationToken(context.Background(),
		&model.User{ID: "u-1", Email: "alice@example.com"},
		&model.EmailVerificationToken{ID: "t-1", UserID: "u-1", Token: "abc"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create verification token")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStoreRotateRefreshToken(t *testing.T) {
	next := &model.RefreshToken{ID: "r-2", UserID: "u-1", TokenHash: "new-hash"}

	t.Run("revokes and inserts", func(t *testing.T) {
		database, mock := newRepoMock(t)
		store := NewCredentialStore(database, time.Second)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND revoked = FALSE")).
			WithArgs("old-hash").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
			WithArgs("r-2", "u-1", "new-hash", sqlmock.AnyArg(), sqlmock.AnyArg(), false).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.RotateRefreshToken(context.Background(), "old-hash", next))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already revoked", func(t *testing.T) {
		database, mock := newRepoMock(t)
		store := NewCredentialStore(database, time.Second)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE")).
			WithArgs("old-hash").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.RotateRefreshToken(context.Background(), "old-hash", next)
		assert.ErrorIs(t, err, ErrTokenNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCredentialStoreConsumeResetTokenRollsBack(t *testing.T) {
	database, mock := newRepoMock(t)
	store := NewCredentialStore(database, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1 WHERE id = $2")).
		WithArgs("new-hash", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.ConsumeResetToken(context.Background(),
		&model.PasswordResetToken{ID: "p-1", UserID: "u-1"}, "new-hash")
	assert.EqualError(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryScopesByOwner(t *testing.T) {
	database, mock := newRepoMock(t)
	repo := NewTaskRepository(database, time.Second)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1 AND user_id = $2")).
		WithArgs("task-1", "u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "u-2", "task-1")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM tasks WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "duration_minutes", "deadline", "importance", "completed", "created_at"}).
			AddRow("task-1", "u-1", "Write report", 30, nil, 3, false, time.Now()))

	tasks, err := repo.Tasks(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Write report", tasks[0].Title)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryTimeoutApplied(t *testing.T) {
	database, mock := newRepoMock(t)
	repo := NewUserRepository(database, 20*time.Millisecond)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1")).
		WithArgs("u-1").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.ByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}
