// Package config centralizes how LabelDrop reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env"
)

// Store backends selectable through LABELDROP_STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config represents runtime configuration for the server, the worker and the
// CLI. The six required values identify the database and the object store;
// starting without any of them is a deployment mistake, so Load fails.
type Config struct {
	Address string `env:"LABELDROP_ADDRESS" envDefault:":8080"`

	DatabaseURL   string `env:"DATABASE_URL,required"`
	S3Endpoint    string `env:"S3_ENDPOINT,required"`
	S3AccessKey   string `env:"S3_ACCESS_KEY,required"`
	S3SecretKey   string `env:"S3_SECRET_KEY,required"`
	Bucket        string `env:"S3_BUCKET,required"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`

	S3Region  string `env:"S3_REGION" envDefault:"us-east-1"`
	S3UseSSL  bool   `env:"S3_USE_SSL" envDefault:"false"`
	KeyPrefix string `env:"LABELDROP_KEY_PREFIX" envDefault:"etiquetas"`

	MaxFileSize int64  `env:"LABELDROP_MAX_FILE_BYTES" envDefault:"26214400"` // 25 MiB
	RecentLimit int    `env:"LABELDROP_RECENT_LIMIT" envDefault:"50"`
	Store       string `env:"LABELDROP_STORE" envDefault:"postgres"`

	// Label inspection is disabled when RedisAddr is empty.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	Workers       int    `env:"LABELDROP_WORKERS" envDefault:"2"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

const (
	defaultMaxFileSize = 25 << 20
	// maxRecentLimit is the size of the live window; smaller values are allowed
	// for local testing.
	maxRecentLimit     = 50
	defaultWorkerCount = 2
)

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	// env only checks that required variables are set, not that they hold a value.
	for name, v := range map[string]string{
		"DATABASE_URL":    c.DatabaseURL,
		"S3_ENDPOINT":     c.S3Endpoint,
		"S3_ACCESS_KEY":   c.S3AccessKey,
		"S3_SECRET_KEY":   c.S3SecretKey,
		"S3_BUCKET":       c.Bucket,
		"PUBLIC_BASE_URL": c.PublicBaseURL,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s: must not be empty", name)
		}
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("LABELDROP_STORE: unsupported backend %q (postgres, memory)", c.Store)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT: unsupported format %q (json, console)", c.LogFormat)
	}
	c.KeyPrefix = strings.Trim(c.KeyPrefix, "/")
	if c.KeyPrefix == "" {
		return fmt.Errorf("LABELDROP_KEY_PREFIX: must not be empty")
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
	}
	if c.RecentLimit <= 0 || c.RecentLimit > maxRecentLimit {
		c.RecentLimit = maxRecentLimit
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount
	}
	return nil
}

// InspectionEnabled reports whether uploads should be handed to the worker.
func (c *Config) InspectionEnabled() bool {
	return c.RedisAddr != ""
}
