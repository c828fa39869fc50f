package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("INGEST_BATCH_SIZE", "250")
	t.Setenv("INGEST_ATOMIC_ATTACHMENTS", "true")
	t.Setenv("UNRELATED_VAR", "ignored")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	conn := cfg.GetConnectionConfig()
	assert.Equal(t, "db.internal", conn["host"])
	assert.Equal(t, "s3cret", conn["password"])
	assert.Equal(t, "postgres", conn["database"])
	assert.Equal(t, "postgres", conn["username"])
	assert.Equal(t, "prefer", conn["sslmode"])
	assert.Equal(t, 250, cfg.BatchSize())
	assert.True(t, cfg.AtomicAttachments())
	assert.Equal(t, "", cfg.GetString("UNRELATED_VAR", ""))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTGRES_ADMIN_DB=railway\nPORT=9090\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("POSTGRES_ADMIN_DB") })
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "railway", cfg.GetConnectionConfig()["database"])
	assert.Equal(t, "7070", cfg.HTTPPort())
}

func TestDefaults(t *testing.T) {
	cfg := FromMap(nil)

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize())
	assert.False(t, cfg.AtomicAttachments())
	assert.Equal(t, DefaultPort, cfg.HTTPPort())
	assert.Empty(t, cfg.GRPCPort())
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes())
	assert.Equal(t, "10s", cfg.GetConnectionConfig()["connect_timeout"])
	assert.Equal(t, "", cfg.GetArchiveConfig()["bucket"])
	assert.Equal(t, "notifications", cfg.GetArchiveConfig()["prefix"])
}

func TestTypedGetters(t *testing.T) {
	cfg := FromMap(map[string]string{
		"INGEST_BATCH_SIZE":          "-5",
		"POSTGRES_STATEMENT_TIMEOUT": "90s",
		"ARCHIVE_USE_SSL":            "nope",
		"MAX_BODY_BYTES":             "1024",
	})

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize())
	assert.Equal(t, 90*time.Second, cfg.GetDuration("POSTGRES_STATEMENT_TIMEOUT", time.Minute))
	assert.Equal(t, time.Minute, cfg.GetDuration("POSTGRES_CONNECT_TIMEOUT", time.Minute))
	assert.True(t, cfg.GetBool("ARCHIVE_USE_SSL", true))
	assert.Equal(t, int64(1024), cfg.MaxBodyBytes())
}
