package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLASSIFIER_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, 8*time.Second, cfg.Classifier.Timeout())
	assert.Equal(t, 16, cfg.Classifier.MaxInFlight)
	assert.Equal(t, 10*time.Minute, cfg.Workers.StuckAfter())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CLASSIFIER_TIMEOUT_SECONDS", "3")
	t.Setenv("CLASSIFIER_MAX_IN_FLIGHT", "2")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 3*time.Second, cfg.Classifier.Timeout())
	assert.Equal(t, 2, cfg.Classifier.MaxInFlight)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Postgres.RunMigrations, "unparseable bool falls back to default")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "x")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("in-flight limit", func(t *testing.T) {
		t.Setenv("CLASSIFIER_MAX_IN_FLIGHT", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
