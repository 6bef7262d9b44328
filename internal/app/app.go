package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/pulse-analytics/pulse/internal/config"
	"github.com/pulse-analytics/pulse/internal/db"
	"github.com/pulse-analytics/pulse/internal/middleware"
	"github.com/pulse-analytics/pulse/internal/repository"
	"github.com/pulse-analytics/pulse/internal/security"
	"github.com/pulse-analytics/pulse/internal/service"
	"github.com/pulse-analytics/pulse/internal/validation"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	Store           *repository.CredentialStore
	Validator       *validation.Validator
	Metrics         *service.MetricsService
	EmailService    *service.EmailService
	AuthService     *service.AuthService
	TaskService     *service.TaskService
	FeedbackService *service.FeedbackService
	TokenPurger     *service.TokenPurger
	AuthLimiter     middleware.Limiter

	redis       *redis.Client
	memoryLimit *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{Cfg: cfg, DB: database}

	err = a.init(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Cfg

	// Run database migrations
	if cfg.DBAutoMigrate {
		err := db.RunMigrations(a.DB.DB, cfg.DBDriver)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Repositories
	a.Store = repository.NewCredentialStore(a.DB, cfg.DBQueryTimeout)
	taskRepository := repository.NewTaskRepository(a.DB, cfg.DBQueryTimeout)
	feedbackRepository := repository.NewFeedbackRepository(a.DB, cfg.DBQueryTimeout)

	// Security
	hasher, err := security.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	codec, err := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTIssuer, cfg.AccessTokenExpiry)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	// Email
	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	a.EmailService, err = service.NewEmailService(
		sender,
		cfg.AppURL,
		cfg.AppName,
		cfg.TokenEmailVerifyExpiry,
		cfg.TokenPasswordResetExpiry,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Services
	a.Validator = validation.New(cfg.PasswordMinLength)
	a.Metrics = service.NewMetricsService(a.DB.DB)
	a.AuthService, err = service.NewAuthService(
		a.Store,
		hasher,
		codec,
		a.EmailService,
		a.Metrics,
		service.AuthConfig{
			RefreshTokenExpiry:       cfg.RefreshTokenExpiry,
			TokenEmailVerifyExpiry:   cfg.TokenEmailVerifyExpiry,
			TokenPasswordResetExpiry: cfg.TokenPasswordResetExpiry,
			PasswordMinLength:        cfg.PasswordMinLength,
			EmailTimeout:             cfg.EmailTimeout,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}
	a.TaskService = service.NewTaskService(taskRepository)
	a.FeedbackService = service.NewFeedbackService(feedbackRepository)
	a.TokenPurger = service.NewTokenPurger(a.Store)

	// Rate limiting: redis when configured so limits hold across instances
	if cfg.RedisURL != "" {
		a.redis, err = middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.AuthLimiter = middleware.NewRedisLimiter(a.redis, "pulse:ratelimit:", cfg.RateLimitAuthRequests, cfg.RateLimitAuthWindow)
		slog.Info("auth rate limiting backed by redis")
	} else {
		a.memoryLimit = middleware.NewRateLimiter(cfg.RateLimitAuthRequests, cfg.RateLimitAuthWindow)
		a.AuthLimiter = a.memoryLimit
	}

	return nil
}

func newSender(cfg *config.Config) (service.Sender, error) {
	switch cfg.EmailProvider {
	case "resend":
		return service.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom), nil
	case "smtp":
		return service.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom), nil
	case "log":
		return service.NewLogSender(slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

// Close waits for pending emails and releases connections.
func (a *App) Close() error {
	if a.AuthService != nil {
		a.AuthService.Wait()
	}
	if a.memoryLimit != nil {
		a.memoryLimit.Close()
	}

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
