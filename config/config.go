package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the location of the YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPath is used when CONFIG_PATH is not set. A missing file is not an error.
var DefaultConfigPath = filepath.Join("config", "config.yaml")

// AppConfig holds layered configuration: defaults, then config file, then environment.
type AppConfig struct {
	App      AppSection      `koanf:"app"`
	Gin      GinSection      `koanf:"gin"`
	Database DatabaseSection `koanf:"database"`
	Redis    RedisSection    `koanf:"redis"`
	Log      LogSection      `koanf:"log"`
	// Markers is the fixed seed list loaded into the marker registry on every start.
	Markers []MarkerSeed `koanf:"markers" validate:"omitempty,dive"`
}

type AppSection struct {
	Port               string        `koanf:"port" validate:"required,numeric"`
	AllowedOrigins     []string      `koanf:"allowed_origins" validate:"min=1"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" validate:"gte=0"`
	AuditInterval      time.Duration `koanf:"audit_interval" validate:"gte=0"`
	// RegisterMaxPerIPPerDay caps new registrations per client IP; 0 disables. Needs Redis.
	RegisterMaxPerIPPerDay int           `koanf:"register_max_per_ip_per_day" validate:"gte=0"`
	ActivityRetentionDays  int           `koanf:"activity_retention_days" validate:"gte=0"`
	ActivityPruneInterval  time.Duration `koanf:"activity_prune_interval" validate:"gte=0"`
}

type GinSection struct {
	Mode    string `koanf:"mode" validate:"oneof=debug release test"`
	LogPath string `koanf:"log_path"`
}

type DatabaseSection struct {
	Driver     string `koanf:"driver" validate:"oneof=mysql sqlite"`
	URI        string `koanf:"uri"`
	Host       string `koanf:"host"`
	Port       string `koanf:"port"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	Name       string `koanf:"name"`
	SQLitePath string `koanf:"sqlite_path"`
}

// RedisSection configures the optional stats cache. An empty Host disables it.
type RedisSection struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port" validate:"gte=0,lte=65535"`
	DB       int           `koanf:"db" validate:"gte=0"`
	Password string        `koanf:"password"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"`
}

type LogSection struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

// MarkerSeed describes one physical marker.
type MarkerSeed struct {
	ID   string `koanf:"id" validate:"required,max=64"`
	Name string `koanf:"name" validate:"required,max=255"`
}

// DefaultMarkers are the three graffiti of the Gormaz north wall and hastial.
var DefaultMarkers = []MarkerSeed{
	{ID: "irlSoldier", Name: "Soldier in north wall"},
	{ID: "irlDate", Name: "Gothic inscription in north wall"},
	{ID: "irlMonk", Name: "Pointing monk in hastial"},
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// envKeys maps the supported environment variables onto koanf paths.
var envKeys = map[string]string{
	"APP_PORT":                    "app.port",
	"ALLOWED_ORIGINS":             "app.allowed_origins",
	"RATE_LIMIT_PER_MINUTE":       "app.rate_limit_per_minute",
	"AUDIT_INTERVAL":              "app.audit_interval",
	"REGISTER_MAX_PER_IP_PER_DAY": "app.register_max_per_ip_per_day",
	"ACTIVITY_RETENTION_DAYS":     "app.activity_retention_days",
	"ACTIVITY_PRUNE_INTERVAL":     "app.activity_prune_interval",
	"GIN_MODE":                    "gin.mode",
	"GIN_LOG_PATH":                "gin.log_path",
	"GIN_PATH":                    "gin.log_path",
	"DB_DRIVER":                   "database.driver",
	"DATABASE_URI":                "database.uri",
	"DB_HOST":                     "database.host",
	"DB_PORT":                     "database.port",
	"DB_USER":                     "database.user",
	"DB_PASSWORD":                 "database.password",
	"DB_NAME":                     "database.name",
	"SQLITE_PATH":                 "database.sqlite_path",
	"REDIS_HOST":                  "redis.host",
	"REDIS_PORT":                  "redis.port",
	"REDIS_DB":                    "redis.db",
	"REDIS_PASSWORD":              "redis.password",
	"CACHE_TTL":                   "redis.cache_ttl",
	"LOG_LEVEL":                   "log.level",
	"LOG_PATH":                    "log.path",
	"LOG_MAX_SIZE_MB":             "log.max_size_mb",
	"LOG_MAX_BACKUPS":             "log.max_backups",
	"LOG_MAX_AGE_DAYS":            "log.max_age_days",
	"LOG_COMPRESS":                "log.compress",
}

func defaultConfig() AppConfig {
	return AppConfig{
		App: AppSection{
			Port:                  "5000",
			AllowedOrigins:        []string{"*"},
			RateLimitPerMinute:    120,
			AuditInterval:         10 * time.Minute,
			ActivityRetentionDays: 90,
			ActivityPruneInterval: 6 * time.Hour,
		},
		Gin: GinSection{
			Mode:    "release",
			LogPath: "logs/go_gin.log",
		},
		Database: DatabaseSection{
			Driver:     "mysql",
			Host:       "127.0.0.1",
			Port:       "3306",
			User:       "root",
			Name:       "gormazar",
			SQLitePath: "data/gormazar.db",
		},
		Redis: RedisSection{
			Port:     6379,
			CacheTTL: 30 * time.Second,
		},
		Log: LogSection{
			Level:      "info",
			Path:       "logs/app.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Default returns the built-in configuration including the default marker seeds.
func Default() AppConfig {
	c := defaultConfig()
	c.Markers = append([]MarkerSeed(nil), DefaultMarkers...)
	return c
}

// Load loads the configuration once during boot and exits on invalid input.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	path := os.Getenv(ConfigPathEnvVar)
	if path == "" {
		path = DefaultConfigPath
	}
	c, err := LoadFrom(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// LoadFrom layers defaults, the YAML file at path (if it exists) and environment overrides.
func LoadFrom(path string) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return AppConfig{}, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load environment: %w", err)
	}

	var out AppConfig
	if err := k.Unmarshal("", &out); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	out.App.AllowedOrigins = splitAndTrim(out.App.AllowedOrigins)
	if len(out.Markers) == 0 {
		out.Markers = append([]MarkerSeed(nil), DefaultMarkers...)
	}

	if err := out.Validate(); err != nil {
		return AppConfig{}, err
	}
	return out, nil
}

// Validate checks struct constraints.
func (c AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RedisEnabled reports whether a Redis host was configured.
func (c AppConfig) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Host) != ""
}

func envTransform(key string) string {
	return envKeys[key]
}

// splitAndTrim flattens comma separated entries and drops blanks.
func splitAndTrim(in []string) []string {
	var out []string
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
