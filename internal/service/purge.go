package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulse-analytics/pulse/internal/repository"
)

type TokenStore interface {
	DeleteExpiredTokens(ctx context.Context, before time.Time) (repository.PurgeResult, error)
}

// TokenPurger removes expired, revoked and used tokens.
type TokenPurger struct {
	store TokenStore

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewTokenPurger(store TokenStore) *TokenPurger {
	return &TokenPurger{store: store, NowFunc: time.Now}
}

func (p *TokenPurger) Purge(ctx context.Context) (repository.PurgeResult, error) {
	result, err := p.store.DeleteExpiredTokens(ctx, p.NowFunc().UTC())
	if err != nil {
		return result, fmt.Errorf("purge tokens: %w", err)
	}

	slog.Info("expired tokens purged",
		"verification", result.VerificationTokens,
		"refresh", result.RefreshTokens,
		"reset", result.ResetTokens,
	)
	return result, nil
}

// Run purges every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (p *TokenPurger) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := p.Purge(ctx)
			if err != nil && ctx.Err() == nil {
				slog.Error("token purge failed", "error", err)
			}
		}
	}
}
