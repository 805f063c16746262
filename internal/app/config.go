package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment string
	Port        string

	StoreDriver       string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	RunMigrations     bool

	RedisURL string

	SecretKey         string
	JWTAlgorithm      string
	TokenValidityDays int

	BcryptCost              int
	PasswordHashConcurrency int

	CaptchaTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool
	SMTPFrom     string
	SMTPFromName string

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	AdminSecret string
	SentryDSN   string
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Environment: envOrDefault("APP_ENV", "development"),
		Port:        envOrDefault("PORT", "8080"),

		StoreDriver:       strings.ToLower(envOrDefault("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),

		JWTAlgorithm:      envOrDefault("JWT_ALGORITHM", "HS256"),
		TokenValidityDays: envIntOrDefault("ACCESS_TOKEN_EXPIRE_DAYS", 30),

		BcryptCost:              envIntOrDefault("BCRYPT_COST", 0),
		PasswordHashConcurrency: envIntOrDefault("PASSWORD_HASH_CONCURRENCY", 0),

		CaptchaTTL: envSecondsOrDefault("CAPTCHA_TTL_SECONDS", 300),

		SMTPHost:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:     envIntOrDefault("SMTP_PORT", 587),
		SMTPUser:     strings.TrimSpace(os.Getenv("SMTP_USER")),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPUseTLS:   EnvBoolOrDefault("SMTP_USE_TLS", true),
		SMTPFrom:     strings.TrimSpace(os.Getenv("SMTP_FROM")),
		SMTPFromName: envOrDefault("SMTP_FROM_NAME", "WeiMeng"),

		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		AdminSecret: strings.TrimSpace(os.Getenv("ADMIN_SECRET")),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
	}

	var err error
	if cfg.SecretKey, err = mustEnv("SECRET_KEY"); err != nil {
		return Config{}, err
	}
	if cfg.RedisURL, err = mustEnv("REDIS_URL"); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing required env: DATABASE_URL")
		}
	case StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER: %s", cfg.StoreDriver)
	}

	return cfg, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
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
