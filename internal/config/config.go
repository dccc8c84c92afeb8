// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"auth-serverless/internal/auth"
)

// Config is built once at startup and passed by value; nothing mutates it afterwards.
type Config struct {
	AppName     string
	Environment string
	Port        string

	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetime    time.Duration
	DBConnMaxIdleTime    time.Duration
	RunMigrationsOnStart bool

	RedisURL  string
	SentryDSN string

	JWTSecret           string
	JWTAlgorithm        string
	JWTIssuer           string
	JWTLeeway           time.Duration
	TokenHashSecret     string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	BcryptRounds        int
	MaxLoginAttempts    int
	AccountLockDuration time.Duration

	AdminEmail    string
	AdminUsername string
	AdminPassword string

	CronSecret             string
	DenylistPurgeBatchSize int
}

// Load reads the environment. It does not read .env files; callers that want that
// call godotenv.Load first.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv func(string) string) (Config, error) {
	env := environment(getenv)

	databaseURL, err := env.required("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := env.required("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	tokenHashSecret, err := env.required("TOKEN_HASH_SECRET")
	if err != nil {
		return Config{}, err
	}
	if tokenHashSecret == jwtSecret {
		return Config{}, fmt.Errorf("TOKEN_HASH_SECRET must differ from JWT_SECRET")
	}

	return Config{
		AppName:     env.orDefault("APP_NAME", "auth-serverless"),
		Environment: env.orDefault("APP_ENV", "development"),
		Port:        env.orDefault("PORT", "8080"),

		DatabaseURL:          databaseURL,
		DBMaxOpenConns:       env.intOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:       env.intOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:    env.minutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime:    env.minutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		RunMigrationsOnStart: env.boolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),

		RedisURL:  env.orDefault("REDIS_URL", ""),
		SentryDSN: env.orDefault("SENTRY_DSN", ""),

		JWTSecret:           jwtSecret,
		JWTAlgorithm:        strings.ToUpper(env.orDefault("JWT_ALGORITHM", "HS256")),
		JWTIssuer:           env.orDefault("JWT_ISSUER", ""),
		JWTLeeway:           env.secondsOrDefault("JWT_LEEWAY_SECONDS", 0),
		TokenHashSecret:     tokenHashSecret,
		AccessTokenTTL:      env.minutesOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 15),
		RefreshTokenTTL:     env.daysOrDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7),
		BcryptRounds:        env.intOrDefault("BCRYPT_ROUNDS", 12),
		MaxLoginAttempts:    env.intOrDefault("MAX_LOGIN_ATTEMPTS", 5),
		AccountLockDuration: env.minutesOrDefault("ACCOUNT_LOCK_MINUTES", 15),

		AdminEmail:    env.orDefault("ADMIN_EMAIL", ""),
		AdminUsername: env.orDefault("ADMIN_USERNAME", ""),
		AdminPassword: env.orDefault("ADMIN_PASSWORD", ""),

		CronSecret:             env.orDefault("CRON_SECRET", ""),
		DenylistPurgeBatchSize: env.intOrDefault("DENYLIST_PURGE_BATCH_SIZE", 500),
	}, nil
}

// AuthConfig is the subset consumed by the authentication engine.
func (c Config) AuthConfig() auth.Config {
	return auth.Config{
		JWTSecret:           c.JWTSecret,
		JWTAlgorithm:        c.JWTAlgorithm,
		JWTIssuer:           c.JWTIssuer,
		JWTLeeway:           c.JWTLeeway,
		TokenHashSecret:     c.TokenHashSecret,
		AccessTokenTTL:      c.AccessTokenTTL,
		RefreshTokenTTL:     c.RefreshTokenTTL,
		BcryptRounds:        c.BcryptRounds,
		MaxLoginAttempts:    c.MaxLoginAttempts,
		AccountLockDuration: c.AccountLockDuration,
	}
}

type environment func(string) string

func (e environment) required(name string) (string, error) {
	value := strings.TrimSpace(e(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func (e environment) orDefault(name, fallback string) string {
	value := strings.TrimSpace(e(name))
	if value == "" {
		return fallback
	}
	return value
}

func (e environment) intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(e(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// secondsOrDefault accepts zero, unlike the other numeric helpers.
func (e environment) secondsOrDefault(name string, fallback int) time.Duration {
	value := strings.TrimSpace(e(name))
	parsed, err := strconv.Atoi(value)
	if value == "" || err != nil || parsed < 0 {
		parsed = fallback
	}
	return time.Duration(parsed) * time.Second
}

func (e environment) minutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(e.intOrDefault(name, fallback)) * time.Minute
}

func (e environment) daysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(e.intOrDefault(name, fallback)) * 24 * time.Hour
}

func (e environment) boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(e(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
