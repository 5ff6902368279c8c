package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "QUEUE_CONCURRENCY",
	"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW_MS", "JWT_SECRET", "STORAGE_TYPE", "MONGODB_URI",
	"MONGODB_DATABASE", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
	"SEARCH_API_KEY", "SEARCH_ENGINE_ID", "LOG_LEVEL", "CORS_ORIGINS",
}

// cleanEnv blanks every variable LoadConfig reads and sets the two required ones
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("GEMINI_API_KEY", "test-key")
}

func TestLoadConfigDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.Upstream.Model)
	assert.Equal(t, "test-key", cfg.Upstream.APIKey)
	assert.Equal(t, 4, cfg.Upstream.MaxRetries)
	assert.Equal(t, time.Second, cfg.Upstream.InitialBackoff)
	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, 30, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 20, cfg.Context.MaxHistoryTurns)
	assert.Equal(t, "en", cfg.I18n.DefaultLanguage)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("QUEUE_CONCURRENCY", "5")
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "30000")
	t.Setenv("GEMINI_MODEL", "gemini-1.5-pro")
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "gemini-1.5-pro", cfg.Upstream.Model)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	cleanEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue:
  concurrency: 7
storage:
  type: mongo
  mongo:
    database: relay
lookup:
  default_location: Berlin
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Queue.Concurrency)
	assert.Equal(t, "mongo", cfg.Storage.Type)
	assert.Equal(t, "relay", cfg.Storage.Mongo.Database)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "Berlin", cfg.Lookup.DefaultLocation)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.Concurrency)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"missing api key", map[string]string{"GEMINI_API_KEY": ""}},
		{"zero concurrency", map[string]string{"QUEUE_CONCURRENCY": "0"}},
		{"unknown storage", map[string]string{"STORAGE_TYPE": "sqlite"}},
		{"bad window", map[string]string{"RATE_LIMIT_WINDOW_MS": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}
