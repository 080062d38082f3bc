package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "DATABASE_URL", "DEFAULT_LANG", "LIVE_QUEUE_SIZE", "DEDUPE_INTERVAL")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite://traderesonance.db", cfg.DatabaseURL)
	assert.Equal(t, "ru", cfg.DefaultLang)
	assert.Equal(t, 64, cfg.LiveQueueSize)
	assert.Equal(t, 15*time.Minute, cfg.DedupeInterval)
	assert.Equal(t, DriverSQLite, cfg.Driver())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://user:pw@db:5432/trade")
	t.Setenv("ADMIN_TOKEN", "s3cret")
	t.Setenv("MODERATION_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("DEDUPE_INTERVAL", "0s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Driver())
	assert.Equal(t, "s3cret", cfg.AdminToken)
	assert.True(t, cfg.ModerationEnabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.DedupeInterval)
}

func TestDriverAndDSN(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		driver string
		dsn    string
	}{
		{"sqlite scheme", "sqlite://local.db", DriverSQLite, "local.db"},
		{"sqlalchemy style", "sqlite:///local.db", DriverSQLite, "local.db"},
		{"absolute sqlite", "sqlite:////var/data/trade.db", DriverSQLite, "/var/data/trade.db"},
		{"bare path", "data/trade.db", DriverSQLite, "data/trade.db"},
		{"postgres", "postgres://u:p@h/db", DriverPostgres, "postgres://u:p@h/db"},
		{"postgresql", "postgresql://u:p@h/db?sslmode=require", DriverPostgres, "postgresql://u:p@h/db?sslmode=require"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DatabaseURL: tt.url}
			assert.Equal(t, tt.driver, cfg.Driver())
			assert.Equal(t, tt.dsn, cfg.DSN())
		})
	}
}

// unsetEnv clears keys for the duration of the test
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}
