package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxCacheTTLSeconds bounds how long a cached meal list may lag behind a
// passing meal.
const MaxCacheTTLSeconds = 300

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ScheduleConfig controls the wall clock the feeding boundaries are computed in.
type ScheduleConfig struct {
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

// TrackerConfig holds the refill tracking configuration.
type TrackerConfig struct {
	CheckSchedule      string        `yaml:"check_schedule"`
	RecentUpdateRaw    string        `yaml:"recent_update_window"`
	RecentUpdateWindow time.Duration `yaml:"-"`
	ReminderThreshold  int           `yaml:"reminder_threshold"`
	LatestLimit        int           `yaml:"latest_limit"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// AdminConfig gates administrative operations.
type AdminConfig struct {
	AllowReplace bool `yaml:"allow_replace"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads .env files from the working directory. Variables that are
// already set are left untouched.
func LoadDotEnv() ([]string, error) {
	var loaded []string
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("failed to load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func (cfg *Config) applyEnv() error {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT: invalid port %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	return nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	// Cached meal lists carry a time-dependent "upcoming" flag.
	if cfg.Server.CacheTTLSeconds > MaxCacheTTLSeconds {
		return fmt.Errorf("server.cache_ttl_seconds: %d exceeds the maximum of %d", cfg.Server.CacheTTLSeconds, MaxCacheTTLSeconds)
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver: unsupported driver %q", cfg.Database.Driver)
	}

	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("schedule.timezone: failed to load %q: %w", cfg.Schedule.Timezone, err)
	}
	cfg.Schedule.Location = loc

	if strings.TrimSpace(cfg.Tracker.CheckSchedule) == "" {
		cfg.Tracker.CheckSchedule = "@every 30s"
	}
	window, err := ParseDurationOrDefault("tracker.recent_update_window", cfg.Tracker.RecentUpdateRaw, 24*time.Hour)
	if err != nil {
		return err
	}
	cfg.Tracker.RecentUpdateWindow = window
	if cfg.Tracker.ReminderThreshold <= 0 {
		cfg.Tracker.ReminderThreshold = 1
	}
	if cfg.Tracker.LatestLimit <= 0 {
		cfg.Tracker.LatestLimit = 4
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

// ParseDurationOrDefault parses raw as a Go duration, falling back to def when
// raw is empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
