package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load. Anything else in the environment is
// ignored.
var envVars = []string{
	"POSTGRES_HOST",
	"POSTGRES_PORT",
	"POSTGRES_USER",
	"POSTGRES_PASSWORD",
	"POSTGRES_ADMIN_DB",
	"POSTGRES_SSLMODE",
	"POSTGRES_CONNECT_TIMEOUT",
	"POSTGRES_STATEMENT_TIMEOUT",
	"POSTGRES_MAX_CONNS",
	"INGEST_BATCH_SIZE",
	"INGEST_ATOMIC_ATTACHMENTS",
	"PORT",
	"GRPC_PORT",
	"MAX_BODY_BYTES",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"ARCHIVE_ENDPOINT",
	"ARCHIVE_ACCESS_KEY_ID",
	"ARCHIVE_SECRET_ACCESS_KEY",
	"ARCHIVE_BUCKET",
	"ARCHIVE_PREFIX",
	"ARCHIVE_REGION",
	"ARCHIVE_USE_SSL",
}

const (
	DefaultBatchSize    = 500
	DefaultPort         = "8000"
	DefaultMaxBodyBytes = 50 << 20
)

type Config struct {
	values map[string]string
}

// Load reads the service configuration from the environment, after loading
// any .env files given (".env" when none are). Missing files are skipped and
// variables already set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{
		values: make(map[string]string),
	}

	cfg.loadFromEnv()
	return cfg, nil
}

// FromMap builds a Config from explicit values.
func FromMap(values map[string]string) *Config {
	cfg := &Config{values: make(map[string]string, len(values))}
	for k, v := range values {
		if v != "" {
			cfg.values[k] = v
		}
	}
	return cfg
}

func (c *Config) loadFromEnv() {
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			c.values[envVar] = value
		}
	}
}

func (c *Config) GetString(key, defaultValue string) string {
	if value, exists := c.values[key]; exists {
		return value
	}
	return defaultValue
}

func (c *Config) GetInt(key string, defaultValue int) int {
	if value, exists := c.values[key]; exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) GetBool(key string, defaultValue bool) bool {
	if value, exists := c.values[key]; exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (c *Config) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := c.values[key]; exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetConnectionConfig returns the opaque connection parameters for the
// administrative database. Tenant connections reuse them with "database"
// replaced.
func (c *Config) GetConnectionConfig() map[string]string {
	return map[string]string{
		"host":              c.GetString("POSTGRES_HOST", "localhost"),
		"port":              c.GetString("POSTGRES_PORT", "5432"),
		"database":          c.GetString("POSTGRES_ADMIN_DB", "postgres"),
		"username":          c.GetString("POSTGRES_USER", "postgres"),
		"password":          c.GetString("POSTGRES_PASSWORD", ""),
		"sslmode":           c.GetString("POSTGRES_SSLMODE", "prefer"),
		"connect_timeout":   c.GetString("POSTGRES_CONNECT_TIMEOUT", "10s"),
		"statement_timeout": c.GetString("POSTGRES_STATEMENT_TIMEOUT", "60s"),
		"max_conns":         c.GetString("POSTGRES_MAX_CONNS", "4"),
	}
}

// GetArchiveConfig returns the S3 archive parameters. An empty "bucket"
// disables archiving.
func (c *Config) GetArchiveConfig() map[string]string {
	return map[string]string{
		"endpoint":          c.GetString("ARCHIVE_ENDPOINT", ""),
		"access_key_id":     c.GetString("ARCHIVE_ACCESS_KEY_ID", ""),
		"secret_access_key": c.GetString("ARCHIVE_SECRET_ACCESS_KEY", ""),
		"bucket":            c.GetString("ARCHIVE_BUCKET", ""),
		"prefix":            c.GetString("ARCHIVE_PREFIX", "notifications"),
		"region":            c.GetString("ARCHIVE_REGION", "us-east-1"),
		"use_ssl":           c.GetString("ARCHIVE_USE_SSL", "true"),
	}
}

// BatchSize is the number of rows per upsert statement.
func (c *Config) BatchSize() int {
	if n := c.GetInt("INGEST_BATCH_SIZE", DefaultBatchSize); n > 0 {
		return n
	}
	return DefaultBatchSize
}

// AtomicAttachments reports whether all batches of an attachment are
// written in one transaction.
func (c *Config) AtomicAttachments() bool {
	return c.GetBool("INGEST_ATOMIC_ATTACHMENTS", false)
}

func (c *Config) HTTPPort() string {
	return c.GetString("PORT", DefaultPort)
}

// GRPCPort is empty when the gRPC health server is disabled.
func (c *Config) GRPCPort() string {
	return c.GetString("GRPC_PORT", "")
}

func (c *Config) MaxBodyBytes() int64 {
	if n := c.GetInt("MAX_BODY_BYTES", DefaultMaxBodyBytes); n > 0 {
		return int64(n)
	}
	return DefaultMaxBodyBytes
}
