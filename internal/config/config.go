package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string // Public base URL used to build email links
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver       string
	DBConnection   string
	DBQueryTimeout time.Duration
	DBAutoMigrate  bool

	// Security
	JWTSecret                string
	JWTAlgorithm             string
	JWTIssuer                string
	AccessTokenExpiry        time.Duration
	RefreshTokenExpiry       time.Duration
	TokenEmailVerifyExpiry   time.Duration
	TokenPasswordResetExpiry time.Duration
	PasswordMinLength        int
	BcryptCost               int
	TokenPurgeInterval       time.Duration // 0 disables the background purge

	// Email
	EmailProvider string // "log", "smtp" or "resend"
	EmailFrom     string
	EmailTimeout  time.Duration
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	ResendAPIKey  string

	// Rate limiting (auth endpoints)
	RateLimitAuthRequests int
	RateLimitAuthWindow   time.Duration
	RedisURL              string // Optional: shared limiter state across instances
	TrustProxyHeaders     bool   // Key limits on X-Forwarded-For; only behind a proxy that sets it

	// Observability (optional)
	SentryDSN string

	// Server
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Pulse"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envRequired("APP_URL"), // Required: base URL for email links
		Port:    envString("PORT", "8000"),

		// Database
		DBDriver:       envString("DB_DRIVER", "sqlite"),
		DBConnection:   envString("DB_CONNECTION", "./data/pulse.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		DBQueryTimeout: envDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", true),

		// Security
		JWTSecret:                envRequired("JWT_SECRET"),
		JWTAlgorithm:             envString("JWT_ALGORITHM", "HS256"),
		JWTIssuer:                envString("JWT_ISSUER", ""),
		AccessTokenExpiry:        envDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenExpiry:       envDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),      // 30 days
		TokenEmailVerifyExpiry:   envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour),    // 24 hours
		TokenPasswordResetExpiry: envDuration("TOKEN_PASSWORD_RESET_EXPIRY", 1*time.Hour),   // 1 hour
		PasswordMinLength:        envInt("PASSWORD_MIN_LENGTH", 8),
		BcryptCost:               envInt("BCRYPT_COST", 12),
		TokenPurgeInterval:       envDuration("TOKEN_PURGE_INTERVAL", 1*time.Hour),

		// Email (log provider prints links instead of sending, for local development)
		EmailProvider: envString("EMAIL_PROVIDER", "log"),
		EmailFrom:     envString("EMAIL_FROM", "no-reply@example.com"),
		EmailTimeout:  envDuration("EMAIL_TIMEOUT", 10*time.Second),
		SMTPHost:      envString("SMTP_HOST", "localhost"),
		SMTPPort:      envInt("SMTP_PORT", 587),
		SMTPUser:      envString("SMTP_USER", ""),
		SMTPPassword:  envString("SMTP_PASSWORD", ""),
		ResendAPIKey:  envString("RESEND_API_KEY", ""),

		// Rate limiting
		RateLimitAuthRequests: envInt("RATE_LIMIT_AUTH_REQUESTS", 5),
		RateLimitAuthWindow:   envDuration("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
		RedisURL:              envString("REDIS_URL", ""),
		TrustProxyHeaders:     envBool("TRUST_PROXY_HEADERS", false),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Server
		ReadTimeout:     envDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// LoadDatabase reads only the database settings, for tools that never
// serve requests.
func LoadDatabase() *Config {
	err := godotenv.Load()
	if err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	return &Config{
		AppEnv:         envString("APP_ENV", "development"),
		DBDriver:       envString("DB_DRIVER", "sqlite"),
		DBConnection:   envString("DB_CONNECTION", "./data/pulse.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		DBQueryTimeout: envDuration("DB_QUERY_TIMEOUT", 5*time.Second),
	}
}

// validateProduction ensures secrets and delivery are configured for production deployments.
// Development allows the log email provider and short secrets for easier local testing.
func validateProduction(cfg *Config) {
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires JWT_SECRET of at least 32 bytes")
		os.Exit(1)
	}

	switch cfg.EmailProvider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			slog.Error("production deployment requires RESEND_API_KEY", "provider", cfg.EmailProvider)
			os.Exit(1)
		}
	case "smtp":
		if cfg.SMTPUser == "" || cfg.SMTPPassword == "" {
			slog.Error("production deployment requires SMTP_USER and SMTP_PASSWORD", "provider", cfg.EmailProvider)
			os.Exit(1)
		}
	default:
		slog.Error("production deployment requires EMAIL_PROVIDER=smtp or resend",
			"provider", cfg.EmailProvider,
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return i
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets and credentials are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		AppURL:  c.AppURL,
		Port:    c.Port,

		DBDriver: c.DBDriver,

		JWTAlgorithm:             c.JWTAlgorithm,
		JWTIssuer:                c.JWTIssuer,
		AccessTokenExpiry:        c.AccessTokenExpiry,
		RefreshTokenExpiry:       c.RefreshTokenExpiry,
		TokenEmailVerifyExpiry:   c.TokenEmailVerifyExpiry,
		TokenPasswordResetExpiry: c.TokenPasswordResetExpiry,
		PasswordMinLength:        c.PasswordMinLength,

		EmailProvider: c.EmailProvider,
		EmailFrom:     c.EmailFrom,

		RateLimitAuthRequests: c.RateLimitAuthRequests,
		RateLimitAuthWindow:   c.RateLimitAuthWindow,
		TrustProxyHeaders:     c.TrustProxyHeaders,
	}
}
