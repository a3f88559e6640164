// Package config loads the process configuration once at start-up.
//
// Values come from the environment (optionally seeded from a .env file).
// The resulting *Config is treated as immutable and handed by pointer to
// every component that needs it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port int `envconfig:"PORT" default:"8080"`

	// DatabaseURL is either a postgres URL or a SQLite file path (":memory:" works too).
	DatabaseURL string `envconfig:"DATABASE_URL" default:"data/registry.db"`
	DBDebug     bool   `envconfig:"DB_DEBUG" default:"false"`

	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_KEYNAME"`
	S3SecretKey string `envconfig:"S3_SECRETKEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"pcc-staging"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`

	UploadMaxBytes int64 `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("config: UPLOAD_MAX_BYTES must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	return nil
}

// IsPostgres reports whether DatabaseURL targets postgres rather than SQLite.
func (c *Config) IsPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// StorageEnabled is false when no object-storage endpoint is configured.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
