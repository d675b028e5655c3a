package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/ari-accounts/internal/config"
	"github.com/mcoot/ari-accounts/internal/dependencies/clock"
	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/services/account"
	"github.com/mcoot/ari-accounts/internal/services/captcha"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
	"github.com/mcoot/ari-accounts/internal/services/session"
	"github.com/mcoot/ari-accounts/internal/storage"
	"github.com/mcoot/ari-accounts/internal/storage/memory"
	redisstorage "github.com/mcoot/ari-accounts/internal/storage/redis"
	"github.com/mcoot/ari-accounts/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQL    = config.StorageSQL
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Hasher      *credentials.Hasher
	Credentials *credentials.Service
	Captcha     *captcha.Service
	Sessions    *session.Manager
	Accounts    *account.Controller

	SecureCookies bool
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sql")
	SQLConfig *sqlstore.Config

	// SecretKey signs session and client tokens
	SecretKey []byte
	// CaptchaKey peppers stored captcha answers
	CaptchaKey []byte

	// Zero values fall back to each package's defaults
	Hasher  credentials.HasherConfig
	Session session.Config
	Captcha captcha.Config

	SecureCookies bool
}

// FromEnv translates server configuration into a factory Config, creating
// the secret files on first start
func FromEnv(env config.Config, logger *slog.Logger) (Config, error) {
	rnd := random.New()

	secret, err := config.LoadOrCreateSecret(env.Path(env.SecretKeyFile), config.SecretKeySize, rnd)
	if err != nil {
		return Config{}, fmt.Errorf("secret key: %w", err)
	}
	pepper, err := config.LoadOrCreateSecret(env.Path(env.CaptchaKeyFile), config.CaptchaKeySize, rnd)
	if err != nil {
		return Config{}, fmt.Errorf("captcha key: %w", err)
	}

	hasherCfg := credentials.DefaultHasherConfig()
	hasherCfg.Memory = env.Argon2Memory
	hasherCfg.Time = env.Argon2Time
	hasherCfg.Parallelism = env.Argon2Parallelism

	sessionCfg := session.DefaultConfig()
	sessionCfg.Lifetime = env.SessionLifetime

	captchaCfg := captcha.DefaultConfig()
	captchaCfg.TTL = env.CaptchaTTL

	cfg := Config{
		Logger:        logger,
		StorageType:   env.Storage,
		SecretKey:     secret,
		CaptchaKey:    pepper,
		Hasher:        hasherCfg,
		Session:       sessionCfg,
		Captcha:       captchaCfg,
		SecureCookies: env.SecureCookies,
	}

	switch env.Storage {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = env.RedisURL
		cfg.RedisConfig = &redisCfg
	case config.StorageSQL:
		dialect, err := sqlstore.ParseDialect(env.SQLDialect)
		if err != nil {
			return Config{}, err
		}
		dsn := env.SQLDSN
		if dialect == sqlstore.DialectSQLite {
			dsn = sqlstore.SQLiteDSN(env.Path(dsn))
		}
		cfg.SQLConfig = &sqlstore.Config{Dialect: dialect, DSN: dsn}
	}

	return cfg, nil
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQL:
		if cfg.SQLConfig == nil {
			return nil, errors.New("SQLConfig required when StorageType is sql")
		}
		return sqlstore.Open(ctx, *cfg.SQLConfig)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'sql'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, cfg Config, logger *slog.Logger) (*App, error) {
	hasherCfg := cfg.Hasher
	if hasherCfg == (credentials.HasherConfig{}) {
		hasherCfg = credentials.DefaultHasherConfig()
	}
	hasher, err := credentials.NewHasher(hasherCfg, rnd)
	if err != nil {
		return nil, fmt.Errorf("hasher: %w", err)
	}

	sessions, err := session.New(store, clk, cfg.SecretKey, cfg.Session, logger)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}

	captchaService, err := captcha.New(store, clk, rnd, cfg.CaptchaKey, cfg.Captcha, logger)
	if err != nil {
		return nil, fmt.Errorf("captcha: %w", err)
	}

	// Create services
	credentialService := credentials.New(store, hasher, clk, rnd, logger)
	accounts := account.New(credentialService, sessions, logger)

	return &App{
		Storage:       store,
		Clock:         clk,
		Random:        rnd,
		Hasher:        hasher,
		Credentials:   credentialService,
		Captcha:       captchaService,
		Sessions:      sessions,
		Accounts:      accounts,
		SecureCookies: cfg.SecureCookies,
	}, nil
}
