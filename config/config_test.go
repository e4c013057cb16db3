package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.App.Port)
	assert.Equal(t, []string{"*"}, cfg.App.AllowedOrigins)
	assert.Equal(t, 120, cfg.App.RateLimitPerMinute)
	assert.Equal(t, 10*time.Minute, cfg.App.AuditInterval)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, DefaultMarkers, cfg.Markers)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
app:
  port: "8080"
  allowed_origins: ["https://gormaz.example"]
  audit_interval: 1m
database:
  driver: sqlite
  sqlite_path: /tmp/hunt.db
redis:
  host: cache
  cache_ttl: 5s
markers:
  - id: gate
    name: Caliphal gate
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, []string{"https://gormaz.example"}, cfg.App.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.App.AuditInterval)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/hunt.db", cfg.Database.SQLitePath)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 5*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, []MarkerSeed{{ID: "gate", Name: "Caliphal gate"}}, cfg.Markers)
	// untouched keys keep their defaults
	assert.Equal(t, 6379, cfg.Redis.Port)
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "app:\n  port: \"8080\"\n")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Zero(t, cfg.App.RateLimitPerMinute)
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"driver":     "database:\n  driver: postgres\n",
		"port":       "app:\n  port: http\n",
		"log level":  "log:\n  level: loud\n",
		"marker id":  "markers:\n  - name: Nameless\n",
		"rate limit": "app:\n  rate_limit_per_minute: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadFromMalformedYAML(t *testing.T) {
	_, err := LoadFrom(writeConfig(t, "app: [unterminated\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestDefaultCopiesMarkers(t *testing.T) {
	cfg := Default()
	cfg.Markers[0].Name = "changed"
	assert.Equal(t, "Soldier in north wall", DefaultMarkers[0].Name)
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(DatabaseSection{Driver: "oracle"})
	assert.Error(t, err)

	d, err := dialectorFor(DatabaseSection{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = dialectorFor(DatabaseSection{Driver: "mysql", Host: "db", Port: "3306", User: "u", Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())
}
