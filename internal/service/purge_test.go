package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-analytics/pulse/internal/repository"
)

type stubTokenStore struct {
	before []time.Time
	err    error
}

func (s *stubTokenStore) DeleteExpiredTokens(_ context.Context, before time.Time) (repository.PurgeResult, error) {
	s.before = append(s.before, before)
	return repository.PurgeResult{VerificationTokens: 1, RefreshTokens: 2}, s.err
}

func TestTokenPurger(t *testing.T) {
	store := &stubTokenStore{}
	purger := NewTokenPurger(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	purger.NowFunc = func() time.Time { return now }

	result, err := purger.Purge(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Total())
	require.Len(t, store.before, 1)
	assert.Equal(t, time.UTC, store.before[0].Location())
	assert.True(t, store.before[0].Equal(now))

	store.err = errors.New("db down")
	_, err = purger.Purge(context.Background())
	assert.ErrorContains(t, err, "purge tokens: db down")
}

func TestTokenPurgerRunStopsWithContext(t *testing.T) {
	store := &stubTokenStore{}
	purger := NewTokenPurger(store)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, purger.Run(ctx, 10*time.Millisecond))
	assert.NotEmpty(t, store.before)
}
