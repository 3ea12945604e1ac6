package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Push         PushConfig         `yaml:"push"`
	WorkerPool   WorkerPoolConfig   `yaml:"worker_pool"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	Feed         FeedConfig         `yaml:"feed"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
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

// Enabled reports whether both VAPID keys are set.
func (p PushConfig) Enabled() bool { return p.PublicKey != "" && p.PrivateKey != "" }

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RequestIPHeader string   `yaml:"request_ip_header"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableConstraints      bool   `yaml:"enable_constraints"` // Booking exclusion constraint and open-task index
}

// RefreshConfig controls the periodic full reload of the cached snapshot.
type RefreshConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// FeedConfig controls the Redis change-notification channel.
type FeedConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

// HousekeepingConfig holds the hotel-specific settings.
type HousekeepingConfig struct {
	Timezone      string         `yaml:"timezone"`
	HistoryMonths int            `yaml:"history_months"`
	Rates         RatesConfig    `yaml:"rates"`
	Location      *time.Location `yaml:"-"`
}

// RatesConfig is the piece rate paid per finished task, by type.
type RatesConfig struct {
	Checkout int64 `yaml:"checkout"`
	Stayover int64 `yaml:"stayover"`
	Dirty    int64 `yaml:"dirty"`
}

// Load reads the configuration from the given path. A .env file next to the
// process, if present, is loaded first so its variables can override the
// file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not read .env: %v", err)
	}

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

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets and deployment-specific values from the
// environment.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Feed.RedisURL = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("HK_TIMEZONE"); v != "" {
		cfg.Housekeeping.Timezone = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Refresh.IntervalSeconds <= 0 {
		cfg.Refresh.IntervalSeconds = 60
	}
	cfg.Refresh.Interval = time.Duration(cfg.Refresh.IntervalSeconds) * time.Second

	if cfg.Feed.Channel == "" {
		cfg.Feed.Channel = "housekeeping:changes"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	hk := &cfg.Housekeeping
	if hk.Timezone == "" {
		hk.Timezone = "Asia/Ho_Chi_Minh"
	}
	loc, err := time.LoadLocation(hk.Timezone)
	if err != nil {
		return fmt.Errorf("invalid housekeeping.timezone %q: %w", hk.Timezone, err)
	}
	hk.Location = loc

	if hk.HistoryMonths <= 0 {
		hk.HistoryMonths = 6
	}
	if hk.Rates == (RatesConfig{}) {
		hk.Rates = RatesConfig{Checkout: 30000, Stayover: 20000, Dirty: 15000}
	}
	return nil
}
