package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gormazar/gormazar-api/config"
	"github.com/gormazar/gormazar-api/models"
	"github.com/gormazar/gormazar-api/services"
	"github.com/gormazar/gormazar-api/utils"
)

// Config returns a configuration pointing at a fresh SQLite file under t.TempDir().
func Config(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Gin.Mode = "test"
	cfg.Gin.LogPath = ""
	cfg.Log.Level = "error"
	cfg.Log.Path = ""
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	cfg.App.RateLimitPerMinute = 0
	cfg.App.AuditInterval = 0
	return cfg
}

// NewTestDB opens a migrated SQLite database that is closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return OpenDB(t, Config(t))
}

// OpenDB opens and migrates the database described by cfg.
func OpenDB(t *testing.T, cfg config.AppConfig) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(cfg, &models.Marker{}, &models.User{}, &models.UserScan{}, &models.GlobalStats{}, &models.DailyActivity{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewTracker returns a bootstrapped Tracker seeded with the default markers.
func NewTracker(t *testing.T, db *gorm.DB, cache *utils.Cache) *services.Tracker {
	t.Helper()
	tr := services.NewTracker(db, cache)
	require.NoError(t, tr.Bootstrap(context.Background(), config.DefaultMarkers))
	return tr
}

// NewRedis starts an in-process Redis and returns a client for it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

// Do serves req on h and records the response.
func Do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// PostForm sends a urlencoded POST to h.
func PostForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	var body string
	if form != nil {
		body = form.Encode()
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return Do(h, req)
}

// Get sends a GET to h.
func Get(h http.Handler, path string) *httptest.ResponseRecorder {
	return Do(h, httptest.NewRequest(http.MethodGet, path, nil))
}

// DecodeJSON decodes the response body into v.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
