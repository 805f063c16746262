package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/CherryKingOne/WeiMeng/internal/auth"
	"github.com/CherryKingOne/WeiMeng/internal/cache"
	"github.com/CherryKingOne/WeiMeng/internal/captcha"
	"github.com/CherryKingOne/WeiMeng/internal/db"
	"github.com/CherryKingOne/WeiMeng/internal/mailer"
	"github.com/CherryKingOne/WeiMeng/internal/maintenance"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
	"github.com/CherryKingOne/WeiMeng/internal/password"
	"github.com/CherryKingOne/WeiMeng/internal/token"
)

type Options struct {
	LoadDotEnv bool
	// RunMigrations is the default when RUN_MIGRATIONS_ON_STARTUP is unset.
	RunMigrations bool
	// Logger defaults to a JSON logger on stdout.
	Logger *observability.Logger
}

type Runtime struct {
	Handler http.Handler
	Config  Config
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := options.Logger
	if logger == nil {
		logger = observability.NewLogger()
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.RunMigrations = EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", options.RunMigrations)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var (
		database *sql.DB
		users    auth.UserStore
	)
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		logger.Info("user_store_in_memory", map[string]any{"environment": cfg.Environment})
		users = auth.NewMemoryRepository()
	default:
		database, err = openDatabase(startupCtx, cfg)
		if err != nil {
			return nil, err
		}
		closers = append(closers, database.Close)

		if cfg.RunMigrations {
			if err := db.RunMigrations(startupCtx, database, logger); err != nil {
				_ = closeAll()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		users = auth.NewPostgresRepository(database)
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	closers = append(closers, redisClient.Close)
	if err := withStartupRetry(startupCtx, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}); err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	redisCache := cache.NewRedisCache(redisClient)

	hasher, err := password.NewHasher(password.Config{
		Cost:        cfg.BcryptCost,
		Concurrency: cfg.PasswordHashConcurrency,
	})
	if err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	issuer, err := token.NewIssuer(cfg.SecretKey, cfg.JWTAlgorithm)
	if err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	outbound, err := newMailer(cfg, logger)
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	codes := captcha.NewStore(redisCache)
	dispatcher := captcha.NewDispatcher(codes, outbound, cfg.CaptchaTTL, cfg.SMTPFromName)

	authenticator := auth.NewAuthenticator(hasher, issuer, cfg.TokenValidityDays)
	authService := auth.NewService(users, codes, authenticator, logger)

	handler := newRouter(routerDeps{
		logger:        logger,
		authHandler:   auth.NewHandler(authService, logger, cfg.IsDevelopment()),
		captcha:       captcha.NewHandler(dispatcher, logger, cfg.IsDevelopment()),
		accountStatus: maintenance.NewAccountStatusHandler(authService, logger, cfg.AdminSecret),
		loginLimiter:  auth.NewLoginRateLimiter(redisCache, logger, cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow),
		tokens:        issuer,
		health:        healthHandler(database, redisClient),
	})

	logger.Info("app_built", map[string]any{
		"environment":  cfg.Environment,
		"store_driver": cfg.StoreDriver,
		"smtp_enabled": cfg.SMTPHost != "",
	})

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			return closeAll()
		},
	}, nil
}

func openDatabase(ctx context.Context, cfg Config) (*sql.DB, error) {
	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := withStartupRetry(ctx, database.PingContext); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

// withStartupRetry gives freshly started dependencies (a cold database, a
// redis container still booting) a few seconds to come up.
func withStartupRetry(ctx context.Context, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(4, retry.NewExponential(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func newMailer(cfg Config, logger *observability.Logger) (mailer.Mailer, error) {
	if cfg.SMTPHost == "" {
		if !cfg.IsDevelopment() {
			logger.Warn("smtp_not_configured", map[string]any{"environment": cfg.Environment})
		}
		return mailer.NewLogMailer(logger), nil
	}

	smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		UseTLS:   cfg.SMTPUseTLS,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return smtp, nil
}

func healthHandler(database *sql.DB, redisClient redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"redis": "ok"}
		status := http.StatusOK
		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if database != nil {
			checks["database"] = "ok"
			if err := database.PingContext(ctx); err != nil {
				checks["database"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status": overall,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
