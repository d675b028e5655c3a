// Package config loads server configuration from ACCOUNTS_* environment
// variables and manages the on-disk signing secrets.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
)

// Config holds server configuration
type Config struct {
	Addr     string `env:"ACCOUNTS_ADDR"      envDefault:":8080"`
	DataDir  string `env:"ACCOUNTS_DATA_DIR"  envDefault:"."`
	LogLevel string `env:"ACCOUNTS_LOG_LEVEL" envDefault:"info"`

	SecretKeyFile  string `env:"ACCOUNTS_SECRET_KEY_FILE"  envDefault:"secret.key"`
	CaptchaKeyFile string `env:"ACCOUNTS_CAPTCHA_KEY_FILE" envDefault:"captcha.key"`

	Storage    string `env:"ACCOUNTS_STORAGE"     envDefault:"memory"`
	RedisURL   string `env:"ACCOUNTS_REDIS_URL"`
	SQLDialect string `env:"ACCOUNTS_SQL_DIALECT" envDefault:"sqlite"`
	SQLDSN     string `env:"ACCOUNTS_SQL_DSN"     envDefault:"accounts.db"`

	SessionLifetime time.Duration `env:"ACCOUNTS_SESSION_LIFETIME" envDefault:"8760h"`
	CaptchaTTL      time.Duration `env:"ACCOUNTS_CAPTCHA_TTL"      envDefault:"600s"`
	SecureCookies   bool          `env:"ACCOUNTS_SECURE_COOKIES"   envDefault:"true"`

	Argon2Memory      uint32 `env:"ACCOUNTS_ARGON2_MEMORY_KIB"  envDefault:"65536"`
	Argon2Time        uint32 `env:"ACCOUNTS_ARGON2_TIME"        envDefault:"3"`
	Argon2Parallelism uint8  `env:"ACCOUNTS_ARGON2_PARALLELISM" envDefault:"4"`
}

// Load parses configuration from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("ACCOUNTS_REDIS_URL required when ACCOUNTS_STORAGE=redis")
		}
	case StorageSQL:
		if c.SQLDSN == "" {
			return errors.New("ACCOUNTS_SQL_DSN required when ACCOUNTS_STORAGE=sql")
		}
	default:
		return fmt.Errorf("invalid ACCOUNTS_STORAGE %q: must be memory, redis or sql", c.Storage)
	}
	if c.SessionLifetime <= 0 {
		return errors.New("ACCOUNTS_SESSION_LIFETIME must be positive")
	}
	if c.CaptchaTTL <= 0 {
		return errors.New("ACCOUNTS_CAPTCHA_TTL must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid ACCOUNTS_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Path resolves name relative to the data directory
func (c Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
